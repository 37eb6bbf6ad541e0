package domain

type ctxKey string

const (
	RequesterIdCtxKey ctxKey = "es-requesterId"
)

const (
	RequesterIdHeader = "es-requester-address"
)

const (
	LockKeyAttestationPrefix = "attestation:"
)
