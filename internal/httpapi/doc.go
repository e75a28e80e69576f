// Package httpapi exposes a function registry over HTTP.
//
// Routes:
//
//	GET    /                         service banner
//	GET    /health                   liveness probe
//	GET    /metrics                  Prometheus metrics
//	GET    /functions                name and description of every function
//	POST   /functions                create a function
//	GET    /functions/{name}         full definition
//	PUT    /functions/{name}         update a function
//	DELETE /functions/{name}         delete a function
//	POST   /functions/{name}/compute evaluate over {"x": [...], "params": {...}}
//	GET    /functions/{name}/data    signatures, parameters and entry point details
//
// Faults map to status codes: not found 404, already exists 409, invalid
// definitions and evaluation errors 400, persistence failures 500. Error
// bodies are {"detail": "<message>"}.
package httpapi
