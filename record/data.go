package record

// Data is the decrypted body of a record.
type Data struct {
	Title  string   `json:"title"`
	Type   string   `json:"type"`
	Fields []*Field `json:"fields"`
	Custom []*Field `json:"custom"`
	Notes  string   `json:"notes,omitempty"`
}

// New creates record data of the given type with empty field lists.
func New(recordType, title string) *Data {
	return &Data{Title: title, Type: recordType, Fields: []*Field{}, Custom: []*Field{}}
}

// Field returns the first standard field whose type or label is key.
func (d *Data) Field(key string) *Field {
	return find(d.Fields, key)
}

// CustomField returns the first custom field whose type or label is key.
func (d *Data) CustomField(key string) *Field {
	return find(d.Custom, key)
}

// AnyField searches standard fields, then custom fields.
func (d *Data) AnyField(key string) *Field {
	if f := d.Field(key); f != nil {
		return f
	}
	return d.CustomField(key)
}

// FieldsByType returns every standard and custom field of the given type.
func (d *Data) FieldsByType(fieldType string) []*Field {
	var out []*Field
	for _, list := range [][]*Field{d.Fields, d.Custom} {
		for _, f := range list {
			if f != nil && f.Type == fieldType {
				out = append(out, f)
			}
		}
	}
	return out
}

// AddField appends a standard field.
func (d *Data) AddField(f *Field) {
	d.Fields = append(d.Fields, f)
}

// AddCustomField appends a custom field.
func (d *Data) AddCustomField(f *Field) {
	d.Custom = append(d.Custom, f)
}

// find returns the first match. Duplicate labels resolve to the earliest
// field in list order. Null entries are skipped.
func find(list []*Field, key string) *Field {
	for _, f := range list {
		if f != nil && f.Matches(key) {
			return f
		}
	}
	return nil
}
