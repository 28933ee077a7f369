package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/subkit/pkg/payment"
)

// Plan describes a subscription tier: its price, the credit allowance granted
// per billing cycle, and the default billing cadence.
type Plan struct {
	ID              string
	Name            string
	Price           payment.Money
	CreditAllowance int64 // credits granted on activation and each renewal
	Interval        BillingCycle
	Public          bool // available for self-service signup
}

// PlanSource defines how plans are loaded into the lifecycle engine.
// Plans are reference data: loaded once at engine construction and cached.
type PlanSource interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

// PlanSourceFunc adapts a plain function to a PlanSource.
type PlanSourceFunc func(ctx context.Context) (map[string]Plan, error)

func (f PlanSourceFunc) Load(ctx context.Context) (map[string]Plan, error) {
	return f(ctx)
}

// StaticPlans returns a PlanSource serving a fixed in-memory catalog.
// Useful for tests and single-binary deployments without a config file.
func StaticPlans(plans map[string]Plan) PlanSource {
	return PlanSourceFunc(func(context.Context) (map[string]Plan, error) {
		return plans, nil
	})
}

// validatePlans ensures plan configurations are internally consistent.
// Catches configuration errors at startup rather than mid-transition.
func validatePlans(plans map[string]Plan) error {
	if len(plans) == 0 {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("no plans configured"))
	}
	for planID, plan := range plans {
		if plan.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, plan.ID))
		}
		if !plan.Interval.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has invalid billing cycle %q", planID, plan.Interval))
		}
		if plan.CreditAllowance < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative credit allowance: %d", planID, plan.CreditAllowance))
		}
		if plan.Price.Amount < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative price: %d", planID, plan.Price.Amount))
		}
	}
	return nil
}
