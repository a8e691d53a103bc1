// Reconcilia - Municipal External-Data Reconciliation Pipeline
// Copyright 2026 Mandato Lab
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mandatolab/reconcilia

package ingest

import (
	"strconv"
	"strings"
)

// TSE electoral-results file columns (votacao por municipio e zona shape).
// The files carry one row per electoral zone; consolidation to a city
// total is the aggregator's job.
const (
	ColState        = "SG_UF"
	ColOfficeCode   = "CD_CARGO"
	ColRound        = "NR_TURNO"
	ColMunicipality = "NM_MUNICIPIO"
	ColNumber       = "NR_VOTAVEL"
	ColCandidate    = "NM_VOTAVEL"
	ColBallotName   = "NM_URNA_CANDIDATO"
	ColParty        = "SG_PARTIDO"
	ColNominalVotes = "QT_VOTOS_NOMINAIS"
	ColLegendVotes  = "QT_VOTOS_LEGENDA"
)

// VoteFileColumns declares the column order of the TSE results files the
// votes job reads.
var VoteFileColumns = []string{
	ColState,
	ColOfficeCode,
	ColRound,
	ColMunicipality,
	ColNumber,
	ColCandidate,
	ColBallotName,
	ColParty,
	ColNominalVotes,
	ColLegendVotes,
}

// intOrZero parses a decimal field, treating unknown or unparseable values
// as zero rather than fatal.
func intOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// int64OrZero parses a vote-count field, treating unknown or unparseable
// values as zero rather than fatal.
func int64OrZero(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseAmount parses a transparency-portal money string. The portal
// reports Brazilian formatting ("1.234.567,89"); plain decimal point
// formatting is accepted too. Unparseable values come back as 0 with
// ok = false so callers can count them.
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	} else if isThousandsGrouped(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// isThousandsGrouped reports whether a comma-free value uses dots as
// Brazilian thousands separators ("1.500", "2.345.678"). A trailing group
// that is not exactly three digits means the dot is a decimal point.
func isThousandsGrouped(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return false
	}
	if len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts {
		for _, r := range p {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

// splitLocality splits a portal spending-locality value ("SÃO PAULO - SP")
// into municipality name and state code. Values without a state suffix
// come back with an empty state.
func splitLocality(s string) (name, state string) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, " - "); i >= 0 {
		candidate := strings.TrimSpace(s[i+3:])
		if len(candidate) == 2 {
			return strings.TrimSpace(s[:i]), candidate
		}
	}
	return s, ""
}
