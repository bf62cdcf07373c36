// Package crm propagates prospect stage and score changes to Salesforce.
package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-pipeline/internal/model"
	"github.com/sells-group/prospect-pipeline/pkg/salesforce"
)

// accountObject is the SObject prospects sync to.
const accountObject = "Account"

// Syncer mirrors prospect stage and score onto Salesforce accounts.
type Syncer struct {
	sf salesforce.Client
}

// New creates a Salesforce stage syncer.
func New(sf salesforce.Client) *Syncer {
	return &Syncer{sf: sf}
}

// SyncStage upserts the prospect's Salesforce account with the current
// pipeline stage and qualification score. A prospect without an account
// gets one created; the new account ID is written back to the prospect
// so the caller can persist it.
func (s *Syncer) SyncStage(ctx context.Context, p *model.Prospect) error {
	fields := map[string]any{
		"Pipeline_Stage__c":      string(p.PipelineStage),
		"Qualification_Score__c": p.QualificationScore,
	}

	if p.SalesforceID == "" {
		// A matching account may already exist from earlier manual entry.
		id, err := s.findAccount(ctx, p.BusinessName)
		if err != nil {
			return err
		}
		if id != "" {
			p.SalesforceID = id
		}
	}

	if p.SalesforceID == "" {
		fields["Name"] = p.BusinessName
		if p.Location != "" {
			fields["BillingStreet"] = p.Location
		}
		if p.WebsiteURL != "" {
			fields["Website"] = p.WebsiteURL
		}
		id, err := s.sf.InsertOne(ctx, accountObject, fields)
		if err != nil {
			return eris.Wrap(err, "crm: create account")
		}
		p.SalesforceID = id
		zap.L().Info("crm: account created",
			zap.String("prospect_id", p.ID),
			zap.String("salesforce_id", id),
		)
		return nil
	}

	if err := s.sf.UpdateOne(ctx, accountObject, p.SalesforceID, fields); err != nil {
		return eris.Wrap(err, "crm: update account")
	}
	zap.L().Debug("crm: account updated",
		zap.String("prospect_id", p.ID),
		zap.String("salesforce_id", p.SalesforceID),
		zap.String("stage", string(p.PipelineStage)),
	)
	return nil
}

// findAccount returns the ID of an existing account with the given name,
// or "" when none matches.
func (s *Syncer) findAccount(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}

	soql := fmt.Sprintf("SELECT Id FROM Account WHERE Name = '%s' LIMIT 1", soqlEscape(name))

	var result salesforce.QueryResult[struct{ Id string }]
	if err := s.sf.Query(ctx, soql, &result.Records); err != nil {
		return "", eris.Wrap(err, "crm: find account")
	}
	if len(result.Records) == 0 {
		return "", nil
	}
	return result.Records[0].Id, nil
}

// soqlEscape escapes string-literal metacharacters in a SOQL value.
func soqlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
