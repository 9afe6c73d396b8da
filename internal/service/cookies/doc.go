// Package cookies implements the interactive "cookies login" flow.
// It opens a visible browser on a site, waits until the user has signed in
// and exports the session cookies in the Netscape format read by yt-dlp.
package cookies
