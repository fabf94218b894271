/*
Package session implements session management and persistence orchestration.

A session is the history of units a kernel executed successfully. The Manager
records that history in a ports.HistoryStore and replays it into a fresh
kernel, so interpreter state survives restarts. Access to one session is
serialized locally with reference-counted mutexes and, across replicas, with
an optional distributed lock.
*/
package session
