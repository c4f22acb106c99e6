package presets

// StreamTitle persists the named title of a saved preset. Re-saving a preset
// creates a new row; titles are never updated in place.
type StreamTitle struct {
	ID             int    `gorm:"column:id;primaryKey;autoIncrement"`
	AssociatedUser string `gorm:"column:associated_user;size:190;not null;index"`
	Title          string `gorm:"column:title;size:320;not null"`
}

// TableName provides the explicit table binding for GORM.
func (StreamTitle) TableName() string {
	return "stream_title"
}

// StreamTag persists one platform tag attached to a stored title.
type StreamTag struct {
	ID              int    `gorm:"column:id;primaryKey;autoIncrement"`
	AssociatedTitle int    `gorm:"column:associated_title;not null;index"`
	SourceID        string `gorm:"column:source_id;size:190;not null"`
	Name            string `gorm:"column:name;size:190;not null"`
}

// TableName provides the explicit table binding for GORM.
func (StreamTag) TableName() string {
	return "stream_tag"
}

// TagInput carries the platform tag identifier and display name supplied when
// a preset is saved.
type TagInput struct {
	ID   string
	Name string
}

// Preset bundles a stored title with its tags. It is assembled on read and
// never persisted as a unit.
type Preset struct {
	ID    int
	Title string
	Tags  []StreamTag
}
