// Command review4d derives review-render output paths from scene documents
// and runs post-render actions on finished previews.
//
// Usage:
//
//	review4d context <document>
//	review4d path [--preset <key>] <document>
//	review4d post-render [-a <key>]... <render>...
//	review4d watch [dir...]
//	review4d serve
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
