// Package server mounts the forumauth HTTP surface on a chi router and runs
// it with graceful shutdown.
package server
