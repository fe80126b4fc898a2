package registry

// Usage restricts which programs accept a backend.
type Usage uint8

const (
	// UsageCLI marks backends available to identityctl.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends available to identity-stored.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
