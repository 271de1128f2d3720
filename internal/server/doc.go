// Package server implements the WebSocket session gateway for GameChat.
//
// A single Hub goroutine owns the presence registry, chat log, invite ledger
// and game table. Clients decode JSON envelopes on their read pumps and hand
// them to the hub; the hub validates each intent, mutates state and fans out
// notifications to connection send buffers. HTTP routes, configuration,
// origin checks, rate limiting and metrics live alongside in this package.
package server
