package domain

import "time"

// ServerSecret is the single current onboarding passphrase, rotated on
// every successful verification. Stored as one item under a fixed id so
// reads and rotations always hit the same document. Version increments on
// each rotation; rotation is not transactional against concurrent joins —
// a validation that read the prior value may still succeed during the
// rotation window. Known race, kept observable via the version counter.
type ServerSecret struct {
	SecretID  string    `json:"id" dynamodbav:"secret_id"`
	Value     string    `json:"value" dynamodbav:"value"`
	Version   int64     `json:"version" dynamodbav:"version"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

// CurrentSecretID is the fixed document id of the active shared secret.
const CurrentSecretID = "current"
