package rulesets

import "github.com/tstirrat/newthreat/combatlog"

// ClampRank truncates rank to the interval [0, maxRank].
func ClampRank(rank, maxRank int) int {
	return max(0, min(maxRank, rank))
}

// InferMappedTalentRank derives a talent rank from a combatant's talent
// entries. Logs report either rank-specific talent ids with rank 1 or the
// base id with the real rank, so both the mapped rank and the reported rank
// are considered and the highest wins. Ids absent from rankByTalentID are
// ignored.
func InferMappedTalentRank(talentRanks, rankByTalentID map[int]int, maxRank int) int {
	inferred := 0
	for talentID, rank := range talentRanks {
		mapped := rankByTalentID[talentID]
		if mapped == 0 {
			continue
		}
		inferred = max(inferred, mapped, rank)
	}
	return ClampRank(inferred, maxRank)
}

// rankedTalent is a talent turned into a synthetic aura: the aura id for
// rank r is AuraIDs[r-1].
type rankedTalent struct {
	Class   combatlog.Class
	AuraIDs []int
}

func (t rankedTalent) rankMap() map[int]int {
	out := make(map[int]int, len(t.AuraIDs))
	for i, id := range t.AuraIDs {
		out[id] = i + 1
	}
	return out
}

var rankedTalents = []rankedTalent{
	{Class: combatlog.ClassWarrior, AuraIDs: defianceRanks},
	{Class: combatlog.ClassDruid, AuraIDs: feralInstinctRanks},
}

// TalentAuras maps a combatant's talents to the synthetic aura ids the class
// tables key talent modifiers on.
func TalentAuras(class combatlog.Class, talents map[int]int) []int {
	var auras []int
	for _, talent := range rankedTalents {
		if talent.Class != class {
			continue
		}
		rank := InferMappedTalentRank(talents, talent.rankMap(), len(talent.AuraIDs))
		if rank > 0 {
			auras = append(auras, talent.AuraIDs[rank-1])
		}
	}
	return auras
}
