package domain

type ProvisioningState string

const (
	StateUnauthenticated           ProvisioningState = "UNAUTHENTICATED"
	StateAuthenticated             ProvisioningState = "AUTHENTICATED"
	StateAwaitingEmailConfirmation ProvisioningState = "AWAITING_EMAIL_CONFIRMATION"
	StateCheckingProfile           ProvisioningState = "CHECKING_PROFILE"
	StateProfileFound              ProvisioningState = "PROFILE_FOUND"
	StateProfileMissing            ProvisioningState = "PROFILE_MISSING"
	StateAwaitingProfileInput      ProvisioningState = "AWAITING_PROFILE_INPUT"
	StateCreatingProfile           ProvisioningState = "CREATING_PROFILE"
	StateCreatingWallet            ProvisioningState = "CREATING_WALLET"
	StateReady                     ProvisioningState = "READY"
	StateError                     ProvisioningState = "ERROR"
)

// RegistrationContext carries the profile fields collected by the
// registration form or the OAuth completion modal.
type RegistrationContext struct {
	Name       string `json:"name" validate:"required"`
	School     string `json:"school" validate:"required"`
	Department string `json:"department" validate:"required,department"`
	Level      string `json:"level" validate:"required,oneof=100 200 300 400 500 postgraduate"`
}

type ErrorKind string

const (
	ErrorKindValidation          ErrorKind = "VALIDATION"
	ErrorKindNetwork             ErrorKind = "NETWORK"
	ErrorKindEmailUnconfirmed    ErrorKind = "EMAIL_UNCONFIRMED"
	ErrorKindConstraintViolation ErrorKind = "CONSTRAINT_VIOLATION"
)

// ProvisioningError is the lastError exposed to the presentation layer.
type ProvisioningError struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Recoverable bool      `json:"recoverable"`
}

func (e *ProvisioningError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Snapshot is the observable state of a provisioning run.
type Snapshot struct {
	State          ProvisioningState  `json:"state"`
	MissingFields  []string           `json:"missing_fields,omitempty"`
	LastError      *ProvisioningError `json:"last_error,omitempty"`
	WalletDegraded bool               `json:"wallet_degraded"`
	Profile        *Profile           `json:"profile,omitempty"`
	Wallet         *Wallet            `json:"wallet,omitempty"`
}
