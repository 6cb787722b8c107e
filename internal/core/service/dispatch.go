package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// TxHandler executes one named transaction from positional string
// arguments, the shape the wire-level Invoke surface speaks.
type TxHandler func(ctx context.Context, caller string, args []string) (any, error)

// Invoke runs a transaction by name through the dispatch table.
func (s *PharmaService) Invoke(ctx context.Context, caller, function string, args []string) (any, error) {
	handler, ok := s.dispatch[function]
	if !ok {
		return nil, fmt.Errorf("unknown transaction %q: %w", function, ErrValidation)
	}
	return handler(ctx, caller, args)
}

// Transactions lists the names the dispatch table accepts.
func (s *PharmaService) Transactions() []string {
	names := make([]string, 0, len(s.dispatch))
	for name := range s.dispatch {
		names = append(names, name)
	}
	return names
}

func buildDispatch(s *PharmaService) map[string]TxHandler {
	return map[string]TxHandler{
		"registerCompany": func(ctx context.Context, caller string, args []string) (any, error) {
			if err := arity("registerCompany", args, 4); err != nil {
				return nil, err
			}
			return s.RegisterCompany(ctx, caller, args[0], args[1], args[2], args[3])
		},
		"addDrug": func(ctx context.Context, caller string, args []string) (any, error) {
			if err := arity("addDrug", args, 5); err != nil {
				return nil, err
			}
			return s.AddDrug(ctx, caller, args[0], args[1], args[2], args[3], args[4])
		},
		"createPO": func(ctx context.Context, caller string, args []string) (any, error) {
			if err := arity("createPO", args, 4); err != nil {
				return nil, err
			}
			quantity, err := strconv.Atoi(args[3])
			if err != nil {
				return nil, fmt.Errorf("quantity %q is not a number: %w", args[3], ErrValidation)
			}
			return s.CreatePO(ctx, caller, args[0], args[1], args[2], quantity)
		},
		"createShipment": func(ctx context.Context, caller string, args []string) (any, error) {
			if err := arity("createShipment", args, 4); err != nil {
				return nil, err
			}
			// The asset list arrives as a comma-separated batch of serials.
			return s.CreateShipment(ctx, caller, args[0], args[1], splitSerials(args[2]), args[3])
		},
		"updateShipment": func(ctx context.Context, caller string, args []string) (any, error) {
			if err := arity("updateShipment", args, 3); err != nil {
				return nil, err
			}
			return s.UpdateShipment(ctx, caller, args[0], args[1], args[2])
		},
		"retailDrug": func(ctx context.Context, caller string, args []string) (any, error) {
			if err := arity("retailDrug", args, 4); err != nil {
				return nil, err
			}
			return s.RetailDrug(ctx, caller, args[0], args[1], args[2], args[3])
		},
		"viewHistory": func(ctx context.Context, _ string, args []string) (any, error) {
			if err := arity("viewHistory", args, 2); err != nil {
				return nil, err
			}
			return s.ViewHistory(ctx, args[0], args[1])
		},
		"viewDrugCurrentState": func(ctx context.Context, _ string, args []string) (any, error) {
			if err := arity("viewDrugCurrentState", args, 2); err != nil {
				return nil, err
			}
			return s.ViewDrugCurrentState(ctx, args[0], args[1])
		},
	}
}

func arity(function string, args []string, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s takes %d arguments, got %d: %w", function, want, len(args), ErrValidation)
	}
	return nil
}

func splitSerials(list string) []string {
	parts := strings.Split(list, ",")
	serials := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			serials = append(serials, p)
		}
	}
	return serials
}
