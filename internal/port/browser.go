package port

import "context"

// LinkClicker triggers a download by clicking a hidden anchor in a browser page.
// The browser gives no signal whether the download happened.
type LinkClicker interface {
	ClickLink(ctx context.Context, href, filename string) error
}

// Window is a handle to a browser window opened by WindowOpener
type Window interface {
	Close() error
}

// WindowOpener opens a URL in a new browser window.
// A nil Window means the window could not be opened, typically popup blocking.
type WindowOpener interface {
	OpenWindow(ctx context.Context, url string) Window
}
