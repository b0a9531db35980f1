package models

// PendingFile is a file selected for upload and held in memory.
type PendingFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (f PendingFile) Size() int64 {
	return int64(len(f.Data))
}

// UploadBatch is the ordered, in-memory selection of files for one listing.
// It is never persisted; a successful commit clears it.
type UploadBatch struct {
	files []PendingFile
}

func NewUploadBatch(files ...PendingFile) *UploadBatch {
	b := &UploadBatch{}
	for _, f := range files {
		b.Add(f)
	}
	return b
}

func (b *UploadBatch) Add(f PendingFile) {
	b.files = append(b.files, f)
}

// Files returns the selection in order. The slice must not be modified.
func (b *UploadBatch) Files() []PendingFile {
	if b == nil {
		return nil
	}
	return b.files
}

func (b *UploadBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.files)
}

func (b *UploadBatch) Empty() bool {
	return b.Len() == 0
}

func (b *UploadBatch) Clear() {
	b.files = nil
}

// TotalSize is the sum of all pending file sizes in bytes.
func (b *UploadBatch) TotalSize() int64 {
	var total int64
	for _, f := range b.Files() {
		total += f.Size()
	}
	return total
}
