package builtins

import "tradekit/internal/replay"

// RegisterAll adds every built-in strategy to the registry with its default
// parameters.
func RegisterAll(r *replay.Registry) {
	r.Register(NewSMACross(10, 30))
	r.Register(NewEMARSI(20, 14, 30, 70))
}
