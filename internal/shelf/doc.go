// Package shelf is the HTTP client for the notification collaborator: shelf
// naming for channel/playlist submissions and file-delivery reports for
// completed downloads.
package shelf
