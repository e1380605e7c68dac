// Package netsim provides an in-memory peer-to-peer network simulator for
// exercising DHT-style gossip protocol code without a real transport.
//
// It stands in for a gossip/DHT overlay inside a single process: agents
// register a sink with a named Server and exchange ProtocolMessage values
// through it exactly as they would over a real network, so scenario tests
// can drive deterministic agent behavior.
package netsim

import "strings"

// DnaAddress identifies a shared application instance ("DNA") that scopes
// routing. It is an opaque, comparable byte string.
type DnaAddress string

// AgentID identifies a participant within a DNA. Unique only within a DNA,
// and must not contain "::" (used as the bucket separator).
type AgentID string

// EntryAddress is an opaque content address for DHT entries.
type EntryAddress string

// BucketID is the routing/bookkeeping unit: a (DnaAddress, AgentID) pair.
type BucketID string

// RequestID is a server-local identifier of the form "req_{n}".
type RequestID string

// Bucket derives the BucketID for a (dna, agent) pair.
//
// Collisions are impossible provided agent identifiers never contain "::".
func Bucket(dna DnaAddress, agent AgentID) BucketID {
	var b strings.Builder
	b.WriteString(string(dna))
	b.WriteString("::")
	b.WriteString(string(agent))
	return BucketID(b.String())
}

// MetaAddress derives the composite address used to index attached
// metadata: data_address || "||" || attribute.
func MetaAddress(dataAddress EntryAddress, attribute string) EntryAddress {
	var b strings.Builder
	b.WriteString(string(dataAddress))
	b.WriteString("||")
	b.WriteString(attribute)
	return EntryAddress(b.String())
}
