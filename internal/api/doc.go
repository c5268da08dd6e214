// Package api serves the sort engine over HTTP and streams engine events
// over WebSocket.
//
// Routes:
//
//	POST /api/sort          sort a list of integers and return them with task statistics
//	POST /api/bench/start   start a bench preset in the background
//	GET  /api/bench/result  latest bench result
//	GET  /api/status        server and bench status
//	GET  /api/metrics       counters aggregated over every sort served
//	GET  /api/presets       available bench presets
//	GET  /api/history       stored bench results (?name=<bench>)
//	/ws                     engine and bench events as JSON messages
//
// Sort requests run on a bounded worker pool, so at most
// Config.MaxConcurrentSorts sorts execute at once.
package api
