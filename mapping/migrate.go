package mapping

// Sharing migration. A field's sharing classification is a schema property
// that can change after data exists. ChangeFieldSharing relocates the
// field's stored values on every item so they live in the newly classified
// scope, preserving at least one representative value per destination with
// no external input. Collapsing several version- or language-specific
// values into fewer slots loses information; that is accepted and
// documented, not hidden.

// ChangeFieldSharing relocates the field's values into the target scope on
// every item in the tree. The whole batch runs under a single lock
// acquisition with one commit at the end. Applying the same migration twice
// is idempotent: the second application finds nothing left to move.
func (m *Mapping) ChangeFieldSharing(fieldID FieldID, target FieldSharing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		switch target {
		case SharedField:
			migrateToShared(item.Fields, fieldID)
		case UnversionedField:
			migrateToUnversioned(item.Fields, fieldID)
		case VersionedField:
			migrateToVersioned(item.Fields, fieldID, m.stamp())
		}
	}
	mutationCount.WithLabelValues("changesharing").Inc()
	return m.commitLocked()
}

// firstVersionValue returns the field's value from the lowest-numbered
// version bucket of the language holding it.
func firstVersionValue(fs *FieldStore, lang Language, f FieldID) (string, bool) {
	for _, n := range fs.versionNumbers(lang) {
		if v, ok := fs.Versioned[lang][n][f]; ok {
			return v, true
		}
	}
	return "", false
}

// migrateToShared collapses the field into one shared value. For each
// language the unversioned value is preferred, then the lowest-version
// versioned value. Languages are examined in sorted order and the last one
// holding a value wins; picking one language's value over another's is the
// documented lossy step.
func migrateToShared(fs *FieldStore, f FieldID) {
	var value string
	var found bool
	for _, lang := range fs.Languages() {
		if v, ok := fs.Unversioned[lang][f]; ok {
			value, found = v, true
			continue
		}
		if v, ok := firstVersionValue(fs, lang, f); ok {
			value, found = v, true
		}
	}
	if found {
		fs.Shared[f] = value
	}
	for _, values := range fs.Unversioned {
		delete(values, f)
	}
	for _, versions := range fs.Versioned {
		for _, values := range versions {
			delete(values, f)
		}
	}
}

// migrateToUnversioned gives each language one value. A shared value is
// broadcast into every existing language; otherwise each language keeps its
// lowest-version versioned value.
func migrateToUnversioned(fs *FieldStore, f FieldID) {
	if shared, ok := fs.Shared[f]; ok {
		for _, lang := range fs.Languages() {
			fs.setUnversioned(lang, f, shared)
		}
	} else {
		for _, lang := range fs.Languages() {
			if v, ok := firstVersionValue(fs, lang, f); ok {
				fs.setUnversioned(lang, f, v)
			}
		}
	}
	delete(fs.Shared, f)
	for _, versions := range fs.Versioned {
		for _, values := range versions {
			delete(values, f)
		}
	}
}

// migrateToVersioned pushes a value into every version of every language it
// applies to. A shared value goes into every version of every language; a
// language with no versions gets version 1 synthesized with a Created
// stamp. Without a shared value, each language's unversioned value is
// broadcast into that language's versions under the same synthesis rule.
func migrateToVersioned(fs *FieldStore, f FieldID, created string) {
	broadcast := func(lang Language, value string) {
		if len(fs.Versioned[lang]) == 0 {
			fs.ensureVersion(lang, 1, created)
		}
		for _, values := range fs.Versioned[lang] {
			values[f] = value
		}
	}
	if shared, ok := fs.Shared[f]; ok {
		for _, lang := range fs.Languages() {
			broadcast(lang, shared)
		}
	} else {
		for _, lang := range fs.Languages() {
			if v, ok := fs.Unversioned[lang][f]; ok {
				broadcast(lang, v)
			}
		}
	}
	delete(fs.Shared, f)
	for _, values := range fs.Unversioned {
		delete(values, f)
	}
}
