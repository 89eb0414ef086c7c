package fleet

import (
	"github.com/samber/lo"
)

// InstanceClass is one machine shape offered by a provider, described by the
// properties resolution cares about. Name is the provider's identifier for
// the shape (e.g. "g4dn.xlarge", "Standard_NC4as_T4_v3").
type InstanceClass struct {
	Name             string `json:"name" yaml:"name"`
	VCPUs            int32  `json:"vcpus" yaml:"vcpus"`
	AcceleratorCount int32  `json:"acceleratorCount" yaml:"accelerator-count"`
	AcceleratorType  string `json:"acceleratorType" yaml:"accelerator-type"`
	Family           string `json:"family" yaml:"family"`
}

// Catalog is the set of instance classes known for one provider. It can be
// declared statically in the fleet plan or discovered through a provider
// that implements CatalogProvider.
type Catalog []InstanceClass

// Lookup returns the class with the given name.
func (c Catalog) Lookup(name string) (InstanceClass, bool) {
	return lo.Find(c, func(class InstanceClass) bool {
		return class.Name == name
	})
}

// Family returns the classes belonging to the given accelerator family,
// in catalog order.
func (c Catalog) Family(family string) Catalog {
	return lo.Filter(c, func(class InstanceClass, _ int) bool {
		return class.Family == family
	})
}
