/*
Package watchdog enforces per-plan memory limits over live runtimes.

Every sweep interval it samples the resident set size of each child process
tree (root plus enumerable descendants) and tree-kills any runtime over its
owner's plan cap, leaving a "[watchdog]" notice in the project log. The
crash-restart loop then observes the exit normally, so backoff widens for
projects that OOM in a loop.
*/
package watchdog
