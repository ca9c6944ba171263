package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/soyaya/boardling-sub008/internal/privacy/domain"
)

const decisionQuery = "data.boardling.wallet_access.decision"

// DefaultRegoPolicy is the wallet access decision table. Private wallets fall through to the default.
const DefaultRegoPolicy = `package boardling.wallet_access

default decision := {
	"allowed": false,
	"data_level": "denied",
	"requires_payment": false,
	"reason": "wallet is private",
}

decision := {
	"allowed": true,
	"data_level": "full",
	"requires_payment": false,
	"reason": "requester owns wallet",
} if {
	input.requester.is_owner
}

decision := {
	"allowed": true,
	"data_level": "anonymized",
	"requires_payment": false,
	"reason": "wallet is public",
} if {
	not input.requester.is_owner
	input.wallet.privacy_mode == "public"
}

decision := {
	"allowed": true,
	"data_level": "anonymized",
	"requires_payment": false,
	"reason": "paid access to monetizable wallet",
} if {
	not input.requester.is_owner
	input.wallet.privacy_mode == "monetizable"
	input.requester.has_paid
}

decision := {
	"allowed": false,
	"data_level": "denied",
	"requires_payment": true,
	"reason": "payment required for monetizable wallet",
} if {
	not input.requester.is_owner
	input.wallet.privacy_mode == "monetizable"
	not input.requester.has_paid
}
`

// ErrNoDecision is returned when the policy produced no usable decision document.
var ErrNoDecision = errors.New("policy query returned no decision")

// OPAEvaluator evaluates wallet access with a Rego policy prepared once at construction.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy (DefaultRegoPolicy when empty) and prepares the decision query.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if strings.TrimSpace(policy) == "" {
		policy = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"wallet_access.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile access policy: %w", err)
	}
	q, err := rego.New(
		rego.Query(decisionQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare access policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// HealthCheck verifies the prepared policy evaluates a private-wallet stranger request to denied.
// Does not touch storage. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	d, err := e.EvaluateAccess(ctx, AccessInput{WalletID: "healthcheck", PrivacyMode: "private"})
	if err != nil {
		return fmt.Errorf("eval access policy: %w", err)
	}
	if d.Allowed {
		return errors.New("access policy allows a stranger to read a private wallet")
	}
	return nil
}

// EvaluateAccess evaluates the decision table for in. Fails closed on any evaluation error.
func (e *OPAEvaluator) EvaluateAccess(ctx context.Context, in AccessInput) (domain.AccessDecision, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(in)))
	if err != nil {
		return domain.Denied("policy evaluation failed"), err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return domain.Denied("policy evaluation failed"), ErrNoDecision
	}
	doc, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return domain.Denied("policy evaluation failed"), ErrNoDecision
	}
	return parseDecision(doc)
}

func buildInput(in AccessInput) map[string]interface{} {
	return map[string]interface{}{
		"wallet": map[string]interface{}{
			"id":           in.WalletID,
			"privacy_mode": string(in.PrivacyMode),
		},
		"requester": map[string]interface{}{
			"id":       in.RequesterID,
			"is_owner": in.IsOwner,
			"has_paid": in.HasPaid,
		},
	}
}

func parseDecision(doc map[string]interface{}) (domain.AccessDecision, error) {
	allowed, _ := doc["allowed"].(bool)
	requiresPayment, _ := doc["requires_payment"].(bool)
	reason, _ := doc["reason"].(string)
	level, _ := doc["data_level"].(string)

	d := domain.AccessDecision{
		Allowed:         allowed,
		Reason:          reason,
		RequiresPayment: requiresPayment,
		DataLevel:       domain.DataLevel(level),
	}
	switch d.DataLevel {
	case domain.DataLevelFull, domain.DataLevelAnonymized:
		if !d.Allowed {
			return domain.Denied("inconsistent policy decision"), fmt.Errorf("decision grants %q but is not allowed", level)
		}
	case domain.DataLevelDenied:
		if d.Allowed {
			return domain.Denied("inconsistent policy decision"), errors.New("decision is allowed with data_level denied")
		}
	default:
		return domain.Denied("inconsistent policy decision"), fmt.Errorf("unknown data_level %q", level)
	}
	return d, nil
}
