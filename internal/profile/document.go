package profile

import (
	"github.com/vedran77/dermacheck/internal/domain"
	"github.com/vedran77/dermacheck/internal/repository"
)

func toDocument(p *domain.Profile) repository.Document {
	doc := repository.Document{domain.FieldUserID: string(p.UserID)}
	putString(doc, domain.FieldName, p.Name)
	putString(doc, domain.FieldUsername, p.Username)
	putString(doc, domain.FieldBio, p.Bio)
	putString(doc, domain.FieldImageURL, p.ImageURL)
	if p.Following != nil {
		doc[domain.FieldFollowing] = identitiesToStrings(p.Following)
	}
	return doc
}

func fromDocument(id domain.Identity, doc repository.Document) *domain.Profile {
	p := &domain.Profile{UserID: id}
	if v, ok := doc[domain.FieldUserID].(string); ok && v != "" {
		p.UserID = domain.Identity(v)
	}
	p.Name = getString(doc, domain.FieldName)
	p.Username = getString(doc, domain.FieldUsername)
	p.Bio = getString(doc, domain.FieldBio)
	p.ImageURL = getString(doc, domain.FieldImageURL)

	switch v := doc[domain.FieldFollowing].(type) {
	case []any:
		p.Following = make([]domain.Identity, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				p.Following = append(p.Following, domain.Identity(s))
			}
		}
	case []string:
		p.Following = make([]domain.Identity, 0, len(v))
		for _, s := range v {
			p.Following = append(p.Following, domain.Identity(s))
		}
	}
	return p
}

// changedFields lists the keys of merged that differ from existing.
func changedFields(existing, merged *domain.Profile) repository.Document {
	changed := repository.Document{}
	diffString(changed, domain.FieldName, existing.Name, merged.Name)
	diffString(changed, domain.FieldUsername, existing.Username, merged.Username)
	diffString(changed, domain.FieldBio, existing.Bio, merged.Bio)
	diffString(changed, domain.FieldImageURL, existing.ImageURL, merged.ImageURL)
	return changed
}

func diffString(changed repository.Document, field string, before, after *string) {
	if after == nil {
		return
	}
	if before == nil || *before != *after {
		changed[field] = *after
	}
}

func putString(doc repository.Document, field string, v *string) {
	if v != nil {
		doc[field] = *v
	}
}

func getString(doc repository.Document, field string) *string {
	if v, ok := doc[field].(string); ok {
		return &v
	}
	return nil
}

func identitiesToStrings(ids []domain.Identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
