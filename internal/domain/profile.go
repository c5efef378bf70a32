package domain

// ProfilesCollection is the document collection holding one profile per identity.
const ProfilesCollection = "users"

// Document field names of a stored profile.
const (
	FieldUserID    = "userId"
	FieldName      = "name"
	FieldUsername  = "username"
	FieldBio       = "bio"
	FieldImageURL  = "imageUrl"
	FieldFollowing = "following"
)

// Profile is the persisted per-user document. Nil fields are absent.
type Profile struct {
	UserID    Identity   `json:"userId"`
	Name      *string    `json:"name,omitempty"`
	Username  *string    `json:"username,omitempty"`
	Bio       *string    `json:"bio,omitempty"`
	ImageURL  *string    `json:"imageUrl,omitempty"`
	Following []Identity `json:"following,omitempty"`
}

// ProfileUpdate carries the caller-supplied fields of an upsert. Nil means
// "keep what is stored".
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Username *string `json:"username,omitempty"`
	Bio      *string `json:"bio,omitempty"`
	ImageURL *string `json:"imageUrl,omitempty"`
}

// Merge returns the record that results from applying u on top of existing.
// Present fields in u win, otherwise the existing value is kept. Following is
// always carried over from existing.
func (u ProfileUpdate) Merge(userID Identity, existing *Profile) *Profile {
	merged := &Profile{UserID: userID}
	if existing != nil {
		merged.Name = existing.Name
		merged.Username = existing.Username
		merged.Bio = existing.Bio
		merged.ImageURL = existing.ImageURL
		if existing.Following != nil {
			merged.Following = append([]Identity(nil), existing.Following...)
		}
	}
	if u.Name != nil {
		merged.Name = u.Name
	}
	if u.Username != nil {
		merged.Username = u.Username
	}
	if u.Bio != nil {
		merged.Bio = u.Bio
	}
	if u.ImageURL != nil {
		merged.ImageURL = u.ImageURL
	}
	return merged
}

// Clone returns a deep copy so snapshots never share mutable slices.
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	c := *p
	c.Name = cloneString(p.Name)
	c.Username = cloneString(p.Username)
	c.Bio = cloneString(p.Bio)
	c.ImageURL = cloneString(p.ImageURL)
	if p.Following != nil {
		c.Following = append([]Identity(nil), p.Following...)
	}
	return &c
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
