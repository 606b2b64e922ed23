package domain

import "time"

// OTP is a one-time code issued to a single subject.
// PK: otp_id (ULID). Looked up by code through the code-index GSI with a
// used=false filter. Marked used exactly once via a conditional write and
// kept afterwards as an audit trail — records are never deleted.
type OTP struct {
	OTPID     string    `json:"id" dynamodbav:"otp_id"`
	SubjectID string    `json:"subject_id" dynamodbav:"subject_id"`
	Code      string    `json:"code" dynamodbav:"code"`
	Used      bool      `json:"used" dynamodbav:"used"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
}
