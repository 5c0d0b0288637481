package quota

import (
	"fmt"
	"strings"

	"recipebot/internal/config"
)

// Package is a purchasable bundle.
type Package struct {
	Name   string
	Amount int
	Days   int
}

const (
	PackageOneHundred   = "pkg100"
	PackageSubscription = "sub"
)

// Packages lists the bundles defined by the [quota] section.
func Packages(cfg config.Quota) []Package {
	return []Package{
		{Name: PackageOneHundred, Amount: cfg.PackageAmount},
		{Name: PackageSubscription, Amount: cfg.SubscriptionAmount, Days: cfg.SubscriptionDays},
	}
}

// LookupPackage finds a bundle by name.
func LookupPackage(cfg config.Quota, name string) (Package, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, pkg := range Packages(cfg) {
		if pkg.Name == name {
			return pkg, nil
		}
	}
	return Package{}, fmt.Errorf("unknown package %q (want %s or %s)", name, PackageOneHundred, PackageSubscription)
}
