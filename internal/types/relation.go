package types

// RelationType is the kind of link between two issues.
type RelationType string

const (
	RelRelates    RelationType = "relates"
	RelDuplicates RelationType = "duplicates"
	RelDuplicated RelationType = "duplicated"
	RelBlocks     RelationType = "blocks"
	RelBlocked    RelationType = "blocked"
	RelPrecedes   RelationType = "precedes"
	RelFollows    RelationType = "follows"
	RelCopiedTo   RelationType = "copied_to"
	RelCopiedFrom RelationType = "copied_from"
)

// RelationTypes lists every relation type in display order.
var RelationTypes = []RelationType{
	RelRelates, RelDuplicates, RelDuplicated, RelBlocks, RelBlocked,
	RelPrecedes, RelFollows, RelCopiedTo, RelCopiedFrom,
}

var reverseRelation = map[RelationType]RelationType{
	RelRelates:    RelRelates,
	RelDuplicates: RelDuplicated,
	RelDuplicated: RelDuplicates,
	RelBlocks:     RelBlocked,
	RelBlocked:    RelBlocks,
	RelPrecedes:   RelFollows,
	RelFollows:    RelPrecedes,
	RelCopiedTo:   RelCopiedFrom,
	RelCopiedFrom: RelCopiedTo,
}

// IsValid reports whether t is a known relation type.
func (t RelationType) IsValid() bool {
	_, ok := reverseRelation[t]
	return ok
}

// Reverse returns the type seen from the other end of the link.
func (t RelationType) Reverse() RelationType {
	return reverseRelation[t]
}

// isInverse reports whether t is stored by swapping ends and using its reverse.
func (t RelationType) isInverse() bool {
	switch t {
	case RelDuplicated, RelBlocked, RelFollows, RelCopiedFrom:
		return true
	}
	return false
}

// Relation links IssueFromID to IssueToID.
type Relation struct {
	ID          int64        `json:"id" db:"id"`
	IssueFromID int64        `json:"issue_from_id" db:"issue_from_id"`
	IssueToID   int64        `json:"issue_to_id" db:"issue_to_id"`
	Type        RelationType `json:"relation_type" db:"relation_type"`
}

// Normalize rewrites inverse types (blocked, follows, ...) into their forward
// form so a link has a single stored representation.
func (r *Relation) Normalize() {
	if r.Type.isInverse() {
		r.IssueFromID, r.IssueToID = r.IssueToID, r.IssueFromID
		r.Type = r.Type.Reverse()
	}
}

// TypeFor returns the relation type as seen from issueID.
func (r *Relation) TypeFor(issueID int64) RelationType {
	if r.IssueFromID == issueID {
		return r.Type
	}
	return r.Type.Reverse()
}

// Other returns the issue at the opposite end from issueID.
func (r *Relation) Other(issueID int64) int64 {
	if r.IssueFromID == issueID {
		return r.IssueToID
	}
	return r.IssueFromID
}

// Validate checks the link before it is stored.
func (r *Relation) Validate() error {
	var verr ValidationError
	if !r.Type.IsValid() {
		verr.Add("relation_type", "is not included in the list")
	}
	if r.IssueFromID == 0 || r.IssueToID == 0 {
		verr.Add("issue_to", "cannot be blank")
	} else if r.IssueFromID == r.IssueToID {
		verr.Add("issue_to_id", "is invalid")
	}
	if verr.Empty() {
		return nil
	}
	return &verr
}
