// Command loopforge is the queue management CLI: it submits jobs, inspects
// queue state, and runs maintenance against the shared job database.
package main
