package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseReplicaOf splits the --replicaof flag's "host port" value. Redis
// itself accepts this as a single space-separated argument rather than
// two flags, so the value arrives here unsplit.
func parseReplicaOf(raw string) (string, int, error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("--replicaof expects \"host port\", got %q", raw)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, fmt.Errorf("--replicaof port %q is not a number", parts[1])
	}
	return parts[0], port, nil
}
