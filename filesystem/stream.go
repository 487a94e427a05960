package filesystem

import (
	"github.com/boyter/gocodewalker"
	"github.com/charmbracelet/log"
)

// Directory names never descended into when discovering what to watch.
var excludedDirectories = []string{"node_modules", "dist", "build", "coverage"}

// StreamFiles walks root in the background and returns a channel of the
// files found. Hidden entries and anything matched by .gitignore or .ignore
// files are skipped. The channel is closed when the walk ends.
func StreamFiles(root string) <-chan *gocodewalker.File {
	fileListQueue := make(chan *gocodewalker.File, 100)
	fileWalker := gocodewalker.NewFileWalker(root, fileListQueue)
	fileWalker.ExcludeDirectory = excludedDirectories

	go func() {
		if err := fileWalker.Start(); err != nil {
			log.Default().WithPrefix("watcher").Warn("walk failed", "dir", root, "err", err)
		}
	}()

	return fileListQueue
}
