package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Identities created by password sign-up."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Sign-ups refused because the email is taken."},
	{ID: authcore.MetricRegisterRejected, Name: "authcore_register_rejected_total", Help: "Sign-ups refused for an invalid email or weak password."},
	{ID: authcore.MetricRegisterRateLimited, Name: "authcore_register_rate_limited_total", Help: "Rate-limited sign-ups."},
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful password logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Password logins refused for bad credentials."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Logins refused because the identity is locked."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Identities locked after repeated failures."},
	{ID: authcore.MetricLoginUnverified, Name: "authcore_login_unverified_total", Help: "Logins refused because the email is unverified."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Session credentials minted."},
	{ID: authcore.MetricPasswordRehashed, Name: "authcore_password_rehashed_total", Help: "Stored hashes upgraded on login."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Session credentials revoked by logout."},
	{ID: authcore.MetricValidateFailure, Name: "authcore_validate_failure_total", Help: "Session credentials refused by Validate."},
	{ID: authcore.MetricSessionRevoked, Name: "authcore_session_revoked_total", Help: "Revoked credentials presented in strict mode."},
	{ID: authcore.MetricPasswordResetRequest, Name: "authcore_password_reset_request_total", Help: "Password reset requests for known identities."},
	{ID: authcore.MetricPasswordResetConfirmSuccess, Name: "authcore_password_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: authcore.MetricPasswordResetConfirmFailure, Name: "authcore_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: authcore.MetricPasswordResetRateLimited, Name: "authcore_password_reset_rate_limited_total", Help: "Rate-limited password reset calls."},
	{ID: authcore.MetricEmailVerificationSuccess, Name: "authcore_email_verification_success_total", Help: "Emails confirmed."},
	{ID: authcore.MetricEmailVerificationFailure, Name: "authcore_email_verification_failure_total", Help: "Failed email confirmations."},
	{ID: authcore.MetricEmailVerificationResent, Name: "authcore_email_verification_resent_total", Help: "Verification emails re-sent."},
	{ID: authcore.MetricEmailVerificationRateLimited, Name: "authcore_email_verification_rate_limited_total", Help: "Rate-limited verification calls."},
	{ID: authcore.MetricOAuthIdentityCreated, Name: "authcore_oauth_identity_created_total", Help: "Identities created by OAuth sign-in."},
	{ID: authcore.MetricOAuthIdentityExisting, Name: "authcore_oauth_identity_existing_total", Help: "OAuth sign-ins matched to an existing identity."},
	{ID: authcore.MetricOAuthRefused, Name: "authcore_oauth_refused_total", Help: "OAuth sign-ins refused."},
	{ID: authcore.MetricMailDelivered, Name: "authcore_mail_delivered_total", Help: "Account emails handed to the mailer."},
	{ID: authcore.MetricMailFailed, Name: "authcore_mail_failed_total", Help: "Account emails the mailer rejected."},
	{ID: authcore.MetricMailDropped, Name: "authcore_mail_dropped_total", Help: "Account emails dropped by a full or closed queue."},
	{ID: authcore.MetricStoreUnavailable, Name: "authcore_store_unavailable_total", Help: "Operations failed by an unreachable backend."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the Prometheus le labels, matching the engine buckets.
var HistogramBounds = [authcore.HistBucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as metric name suffixes.
var HistogramBoundSuffix = [authcore.HistBucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, zero-padding short input.
func NormalizeBuckets(raw []uint64) [authcore.HistBucketCount]uint64 {
	var out [authcore.HistBucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [authcore.HistBucketCount]uint64) [authcore.HistBucketCount]uint64 {
	var out [authcore.HistBucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
