package billing

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/subkit/pkg/payment"
	"github.com/dmitrymomot/subkit/pkg/subscription"
)

// YAMLPlanSource loads the plan catalog from a YAML file on disk. The file
// is read once per Load call; the engine caches the result, so editing the
// catalog requires a service restart to take effect.
type YAMLPlanSource struct {
	path string
}

// NewYAMLPlanSource creates a plan source reading from path.
func NewYAMLPlanSource(path string) *YAMLPlanSource {
	return &YAMLPlanSource{path: path}
}

type planCatalog struct {
	Plans []planEntry `yaml:"plans"`
}

type planEntry struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	PriceAmount     int64  `yaml:"price_amount"` // minor units (cents)
	Currency        string `yaml:"currency"`
	CreditAllowance int64  `yaml:"credit_allowance"`
	Interval        string `yaml:"interval"` // monthly | yearly
	Public          bool   `yaml:"public"`
}

func (s *YAMLPlanSource) Load(ctx context.Context) (map[string]subscription.Plan, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Join(ErrPlanCatalogNotFound, err)
		}
		return nil, errors.Join(ErrInvalidPlanCatalog, err)
	}

	var catalog planCatalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return nil, errors.Join(ErrInvalidPlanCatalog, err)
	}
	if len(catalog.Plans) == 0 {
		return nil, errors.Join(ErrInvalidPlanCatalog, errors.New("catalog has no plans"))
	}

	plans := make(map[string]subscription.Plan, len(catalog.Plans))
	for _, entry := range catalog.Plans {
		if entry.ID == "" {
			return nil, errors.Join(ErrInvalidPlanCatalog, errors.New("plan with empty id"))
		}
		if _, exists := plans[entry.ID]; exists {
			return nil, errors.Join(ErrInvalidPlanCatalog,
				fmt.Errorf("duplicate plan id %q", entry.ID))
		}
		plans[entry.ID] = subscription.Plan{
			ID:   entry.ID,
			Name: entry.Name,
			Price: payment.Money{
				Amount:   entry.PriceAmount,
				Currency: entry.Currency,
			},
			CreditAllowance: entry.CreditAllowance,
			Interval:        subscription.BillingCycle(entry.Interval),
			Public:          entry.Public,
		}
	}
	return plans, nil
}
