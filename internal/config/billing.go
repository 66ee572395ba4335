package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// BillingDefaults are the operational knobs of the ledger core: the tax rate
// applied when an invoice request carries none, the due-date horizon stamped at
// issue time, and the payment methods the reconciler accepts.
type BillingDefaults struct {
	DefaultTaxRate float64  `mapstructure:"defaultTaxRate"`
	DueDays        int      `mapstructure:"dueDays"`
	PaymentMethods []string `mapstructure:"paymentMethods"`
}

func DefaultBillingDefaults() BillingDefaults {
	return BillingDefaults{
		DefaultTaxRate: 0,
		DueDays:        30,
		PaymentMethods: []string{"cash", "transfer", "check"},
	}
}

// BillingDefaultsHolder serves the current defaults and hot-reloads them when
// the billing.yml file changes. Invalid updates are ignored.
type BillingDefaultsHolder struct {
	current atomic.Value // holds BillingDefaults
}

func NewBillingDefaultsHolder() (*BillingDefaultsHolder, error) {
	v := viper.New()

	v.SetConfigName("billing")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/tradeledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TRADELEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultBillingDefaults()
		v.SetDefault("billing.defaultTaxRate", defaults.DefaultTaxRate)
		v.SetDefault("billing.dueDays", defaults.DueDays)
		v.SetDefault("billing.paymentMethods", defaults.PaymentMethods)
	}

	var cfg BillingDefaults
	if err := v.UnmarshalKey("billing", &cfg); err != nil {
		return nil, err
	}
	if err := validateBillingDefaults(cfg); err != nil {
		return nil, err
	}

	holder := &BillingDefaultsHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated BillingDefaults
		if err := v.UnmarshalKey("billing", &updated); err != nil {
			log.Printf("[billing-config] reload failed: %v", err)
			return
		}
		if err := validateBillingDefaults(updated); err != nil {
			log.Printf("[billing-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[billing-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

// NewStaticBillingDefaultsHolder returns a holder pinned to the given values,
// for tests and callers that do not want file watching.
func NewStaticBillingDefaultsHolder(cfg BillingDefaults) *BillingDefaultsHolder {
	holder := &BillingDefaultsHolder{}
	holder.current.Store(cfg)
	return holder
}

func (h *BillingDefaultsHolder) Get() BillingDefaults {
	return h.current.Load().(BillingDefaults)
}

// AcceptsMethod reports whether the reconciler accepts the payment method.
func (h *BillingDefaultsHolder) AcceptsMethod(method string) bool {
	method = strings.ToLower(strings.TrimSpace(method))
	for _, m := range h.Get().PaymentMethods {
		if strings.ToLower(m) == method {
			return true
		}
	}
	return false
}

func validateBillingDefaults(cfg BillingDefaults) error {
	if cfg.DefaultTaxRate < 0 || cfg.DefaultTaxRate > 100 {
		return errors.New("billing.defaultTaxRate must be within [0, 100]")
	}
	if cfg.DueDays < 0 {
		return errors.New("billing.dueDays cannot be negative")
	}
	if len(cfg.PaymentMethods) == 0 {
		return errors.New("billing.paymentMethods cannot be empty")
	}
	return nil
}
