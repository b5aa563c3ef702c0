package builtins

import "tradesys/internal/logic"

// DefaultRegistry returns a registry holding every built-in logic
// implementation.
func DefaultRegistry() *logic.Registry {
	r := logic.NewRegistry()
	r.Register(Breakout())
	r.Register(RSIMeanReversion())
	r.Register(PredictedEntry())
	return r
}
