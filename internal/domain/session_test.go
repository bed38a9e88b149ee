package domain

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConcurrentDomainWrites(t *testing.T) {
	s := NewSession("")
	require.NotEmpty(t, s.ID())

	var wg sync.WaitGroup
	for id := DomainScopePurpose; id <= DomainEditorialIndependence; id++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.PutDomain(id, NewDomainResult(id.String(), itemsWithScores(int(id))))
		}()
	}
	wg.Wait()

	domains := s.Domains()
	assert.Len(t, domains, DomainCount)
	assert.Equal(t, "domain 3", domains[DomainRigour].Name)
}

func TestSessionSnapshotIsDetached(t *testing.T) {
	s := NewSession("sess-1")
	s.SetDigest(map[string]any{"scope_purpose": "x"})
	s.PutDomain(DomainClarity, NewDomainResult("Clarity", itemsWithScores(4)))

	snap := s.Snapshot()
	s.PutDomain(DomainRigour, NewDomainResult("Rigour", itemsWithScores(5)))
	s.SetOverall(OverallAssessment{QualityScore: 5, Recommendation: RecommendYes})

	assert.Equal(t, "sess-1", snap.ID)
	assert.Len(t, snap.Domains, 1)
	assert.Nil(t, snap.Overall)

	overall, ok := s.Overall()
	require.True(t, ok)
	assert.Equal(t, 5, overall.QualityScore)
}

func TestSessionResetDomainsKeepsDigest(t *testing.T) {
	s := NewSession("sess-2")
	s.SetDigest(map[string]any{"rigour": "systematic search"})
	s.PutDomain(DomainRigour, NewDomainResult("Rigour", itemsWithScores(5)))

	s.ResetDomains()

	assert.Empty(t, s.Domains())
	assert.Equal(t, "systematic search", s.Digest()["rigour"])

	s.Reset()
	assert.Nil(t, s.Digest())
	_, ok := s.Overall()
	assert.False(t, ok)
}

func TestSnapshotJSONUsesNumericDomainKeys(t *testing.T) {
	s := NewSession("sess-3")
	s.PutDomain(DomainStakeholders, NewDomainResult("Stakeholder Involvement", itemsWithScores(7, 7, 7)))

	raw, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"domains":{"2":{"name":"Stakeholder Involvement"`)
	assert.Contains(t, string(raw), `"calculated_score":100`)
	assert.NotContains(t, string(raw), `"overall"`)
}

func TestStage(t *testing.T) {
	assert.Equal(t, StageDigestPending, StageAwaitingDocument.Next())
	assert.Equal(t, StageComplete, StageOverallPending.Next())
	assert.Equal(t, StageComplete, StageComplete.Next())
	assert.Equal(t, "domains_pending", StageDomainsPending.String())
	assert.Equal(t, "stage(9)", Stage(9).String())

	raw, err := json.Marshal(map[string]Stage{"stage": StageOverallPending})
	require.NoError(t, err)
	assert.JSONEq(t, `{"stage":"overall_pending"}`, string(raw))

	var decoded map[string]Stage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, StageOverallPending, decoded["stage"])

	var bad Stage
	assert.Error(t, bad.UnmarshalText([]byte("finished")))
}
