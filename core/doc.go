// Package core contains the streaming client, its contracts and the error
// taxonomy. Transports, credential sources and replay storages plug in
// through the interfaces declared here; core must not import them.
package core
