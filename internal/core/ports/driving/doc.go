// Package driving provides interfaces implemented by core services and
// consumed by inbound adapters (primary/driving ports).
package driving
