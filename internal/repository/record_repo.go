package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/zhipi-dev/zhipi-go-api/internal/models"
)

// RecordRepository defines persistence operations for grading records.
// Update serializes writers per record id; writers to different ids do
// not block each other.
type RecordRepository interface {
	Create(ctx context.Context, planName string, record *models.Record) error
	Get(ctx context.Context, planName, id string) (models.Record, error)
	List(ctx context.Context, planName string) ([]models.Record, error)
	Update(ctx context.Context, planName, id string, mutate func(*models.Record) error) (models.Record, error)
	Delete(ctx context.Context, planName, id string) error
	SaveImage(ctx context.Context, planName, fileName string, data []byte) (string, error)
	ReadImage(ctx context.Context, planName, relPath string) ([]byte, error)
	Stats(ctx context.Context, planName string) (models.PlanStats, error)
}

type recordRepository struct {
	layout Layout
	locks  *keyLock
	idMu   sync.Mutex
	now    func() time.Time
}

// NewRecordRepository instantiates a file-backed record repository rooted at dataDir.
func NewRecordRepository(dataDir string) RecordRepository {
	return &recordRepository{
		layout: Layout{Root: dataDir},
		locks:  newKeyLock(),
		now:    time.Now,
	}
}

func (r *recordRepository) planExists(planName string) bool {
	_, err := os.Stat(r.layout.ConfigPath(planName))
	return err == nil
}

// Create allocates a millisecond-timestamp id for the record and persists
// it. Two creations landing on the same millisecond are disambiguated
// with a numeric suffix, so ids stay unique and sortable by creation time.
func (r *recordRepository) Create(_ context.Context, planName string, record *models.Record) error {
	if !r.planExists(planName) {
		return ErrPlanNotFound
	}

	r.idMu.Lock()
	defer r.idMu.Unlock()

	now := r.now()
	id := strconv.FormatInt(now.UnixMilli(), 10)
	for seq := 1; ; seq++ {
		if _, err := os.Stat(r.layout.RecordPath(planName, id)); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("%d-%d", now.UnixMilli(), seq)
	}

	record.ID = id
	record.CreatedAt = now
	record.UpdatedAt = now

	if err := os.MkdirAll(r.layout.RecordsDir(planName), 0o755); err != nil {
		return fmt.Errorf("create records dir: %w", err)
	}
	return writeJSON(r.layout.RecordPath(planName, id), record)
}

func (r *recordRepository) Get(_ context.Context, planName, id string) (models.Record, error) {
	return r.read(planName, id)
}

func (r *recordRepository) read(planName, id string) (models.Record, error) {
	var record models.Record
	if err := readJSON(r.layout.RecordPath(planName, id), &record); err != nil {
		if os.IsNotExist(err) {
			return models.Record{}, ErrRecordNotFound
		}
		return models.Record{}, fmt.Errorf("read record: %w", err)
	}
	return record, nil
}

func (r *recordRepository) List(_ context.Context, planName string) ([]models.Record, error) {
	if !r.planExists(planName) {
		return nil, ErrPlanNotFound
	}

	entries, err := os.ReadDir(r.layout.RecordsDir(planName))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Record{}, nil
		}
		return nil, fmt.Errorf("read records dir: %w", err)
	}

	records := make([]models.Record, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		var record models.Record
		if err := readJSON(filepath.Join(r.layout.RecordsDir(planName), entry.Name()), &record); err != nil {
			continue
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	return records, nil
}

// Update performs an atomic read-modify-write of one record while holding
// that record's lock. The mutator may reject the update by returning an
// error, in which case nothing is written and the error is returned
// unchanged. On success UpdatedAt is refreshed before persisting.
func (r *recordRepository) Update(_ context.Context, planName, id string, mutate func(*models.Record) error) (models.Record, error) {
	lock := r.locks.get(planName + "/" + id)
	lock.Lock()
	defer lock.Unlock()

	record, err := r.read(planName, id)
	if err != nil {
		return models.Record{}, err
	}

	if err := mutate(&record); err != nil {
		return models.Record{}, err
	}

	record.UpdatedAt = r.now()
	if err := writeJSON(r.layout.RecordPath(planName, id), &record); err != nil {
		return models.Record{}, err
	}

	return record, nil
}

// Delete removes the record file along with its stored images.
func (r *recordRepository) Delete(_ context.Context, planName, id string) error {
	lock := r.locks.get(planName + "/" + id)
	lock.Lock()
	defer lock.Unlock()

	record, err := r.read(planName, id)
	if err != nil {
		return err
	}

	for _, rel := range record.Images {
		path, err := r.imagePath(planName, rel)
		if err != nil {
			continue
		}
		os.Remove(path)
	}

	if err := os.Remove(r.layout.RecordPath(planName, id)); err != nil {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// SaveImage stores image bytes under the plan's images directory and
// returns the path relative to the plan directory, which is how records
// reference their images.
func (r *recordRepository) SaveImage(_ context.Context, planName, fileName string, data []byte) (string, error) {
	dir := r.layout.ImagesDir(planName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create images dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, fileName), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return filepath.ToSlash(filepath.Join(imagesDirName, fileName)), nil
}

func (r *recordRepository) ReadImage(_ context.Context, planName, relPath string) ([]byte, error) {
	path, err := r.imagePath(planName, relPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return data, nil
}

// imagePath resolves a record's relative image reference, rejecting
// anything that escapes the plan directory.
func (r *recordRepository) imagePath(planName, relPath string) (string, error) {
	planDir := r.layout.PlanDir(planName)
	path := filepath.Join(planDir, filepath.FromSlash(relPath))
	if !strings.HasPrefix(filepath.Clean(path), filepath.Clean(planDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("image path %q escapes plan directory", relPath)
	}
	return path, nil
}

func (r *recordRepository) Stats(ctx context.Context, planName string) (models.PlanStats, error) {
	records, err := r.List(ctx, planName)
	if err != nil {
		return models.PlanStats{}, err
	}

	stats := models.PlanStats{Total: len(records)}
	for _, record := range records {
		switch record.Status {
		case models.RecordStatusPending:
			stats.Pending++
		case models.RecordStatusProcessing:
			stats.Processing++
		case models.RecordStatusDone:
			stats.Done++
		case models.RecordStatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}
