package policer

// FeatureToggler is the external feature-graph collaborator Input()
// consults to enable or disable the policer node on an interface,
// grounded on vnet_feature_enable_disable's call sites in policer_input.
type FeatureToggler interface {
	EnableDisable(feature string, swIfIndex uint32, enable bool)
}

// NoopFeatureToggler discards every toggle; useful in tests and wherever
// the feature graph isn't wired up.
type NoopFeatureToggler struct{}

func (NoopFeatureToggler) EnableDisable(string, uint32, bool) {}
