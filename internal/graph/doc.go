// Package graph is a small FalkorDB client speaking the Redis protocol
//
// It issues parameterized Cypher through GRAPH.QUERY and GRAPH.RO_QUERY,
// duplicates graphs with GRAPH.COPY, and parses verbose result sets into rows
// of scalar values plus the statistics FalkorDB reports for writes
package graph
