// Package catalog provides read/write access to the shared media catalog:
// media rows the external fetch tool writes, their caption fragments, the
// playlists they belong to, and the mapping that bridges media ids to the
// external book catalog.
//
// Task code issues its read-modify-write queries through a Tx obtained from
// Store.WithTx so ranking and download writes cannot interleave. The
// compensating cleanup (DeleteMediaAndCaptions) deliberately uses its own
// commit boundary.
package catalog
