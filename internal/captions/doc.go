// Package captions merges timestamped transcript fragments into coherent
// passages and answers substring searches over them.
package captions
