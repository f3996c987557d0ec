// Package handler defines the local handlers a path is dispatched to without
// any network I/O: file mounts for media and static files, and the
// application's routes served in-process. A Chain offers a request to its
// handlers in fixed priority order.
package handler
