/*
The sync package implements foldersync's one-way mirroring algorithm. A pass
makes a replica directory tree a copy of a source directory tree.

A pass has two phases:
1) The copy phase walks the source tree. Missing directories are created in
   the replica, and files that are missing from the replica, or whose
   modification time differs from the source, are copied over. Parents are
   always visited before their children, so copies never target a
   directory that doesn't exist yet.
2) The prune phase walks the replica tree and removes every entry that no
   longer exists in the source. A removed directory is deleted along with its
   contents in one step, and its descendants are not visited.

Nothing is cached between passes. Every pass re-derives its decisions from
the filesystem, so running a pass again is both the retry mechanism for
failed operations and a no-op when nothing changed.

Failures are recorded per operation in the pass Result rather than aborting
the pass.
*/
package sync
