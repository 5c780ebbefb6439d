package geo

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"

	"ttemp-link/internal/domain"
	"ttemp-link/internal/metrics"
	"ttemp-link/internal/repository"
)

// CountryLookup resolves an IP address to a country record.
type CountryLookup interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

// Opener builds a CountryLookup from raw mmdb bytes.
type Opener func(mmdb []byte) (CountryLookup, error)

// OpenMMDB is the default Opener.
func OpenMMDB(mmdb []byte) (CountryLookup, error) {
	reader, err := geoip2.FromBytes(mmdb)
	if err != nil {
		return nil, err
	}
	return reader, nil
}

// DatabaseStore is the storage surface the reader needs.
type DatabaseStore interface {
	GetGeoDatabaseVersion(ctx context.Context) (time.Time, error)
	GetGeoDatabase(ctx context.Context) (*domain.GeoCountryDatabase, error)
}

// loadFailureBackoff is how long a failed first load is remembered before retrying.
const loadFailureBackoff = 10 * time.Second

// readerState is an immutable snapshot; a new one is swapped in on every change.
type readerState struct {
	version   time.Time
	lookup    CountryLookup
	checkedAt time.Time
	failed    bool
}

// Reader answers offline country lookups from the stored dataset. The dataset's
// fetched_at acts as the cache key: the reader is rebuilt only when it changes, and
// the key itself is re-read at most once per check interval.
type Reader struct {
	store         DatabaseStore
	open          Opener
	checkInterval time.Duration
	now           func() time.Time
	log           *zap.Logger

	state atomic.Pointer[readerState]
	mu    sync.Mutex
}

// NewReader creates a reader. A nil opener defaults to OpenMMDB.
func NewReader(store DatabaseStore, opener Opener, checkInterval time.Duration, log *zap.Logger) *Reader {
	if opener == nil {
		opener = OpenMMDB
	}
	return &Reader{
		store:         store,
		open:          opener,
		checkInterval: checkInterval,
		now:           time.Now,
		log:           log.With(zap.String("component", "geo.reader")),
	}
}

// LookupCountry returns the country of ip, or an empty Location when the address is
// invalid, no dataset is stored, or the address is not in it.
func (r *Reader) LookupCountry(ctx context.Context, ip netip.Addr) Location {
	if !ip.IsValid() {
		return Location{}
	}

	lookup := r.current(ctx)
	if lookup == nil {
		return Location{}
	}

	record, err := lookup.Country(net.IP(ip.AsSlice()))
	if err != nil {
		r.log.Debug("country lookup failed", zap.Error(err))
		return Location{}
	}

	code := record.Country.IsoCode
	if code == "" {
		return Location{}
	}
	loc := Location{CountryCode: &code}
	if name := record.Country.Names["en"]; name != "" {
		loc.CountryName = &name
	} else {
		loc.CountryName = CountryName(code)
	}
	return loc
}

// Invalidate forces the next lookup to re-read the dataset version.
func (r *Reader) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st := r.state.Load(); st != nil {
		next := *st
		next.checkedAt = time.Time{}
		r.state.Store(&next)
	}
}

func (r *Reader) current(ctx context.Context) CountryLookup {
	if st := r.state.Load(); st != nil && r.fresh(st) {
		return st.lookup
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.state.Load()
	if st != nil && r.fresh(st) {
		return st.lookup
	}

	next, err := r.reload(ctx, st)
	if err != nil {
		r.log.Warn("failed to refresh country database reader", zap.Error(err))
		if st == nil || st.lookup == nil {
			next = &readerState{failed: true}
		} else {
			// Keep serving the previous reader until the next check.
			next = &readerState{version: st.version, lookup: st.lookup}
		}
	}
	next.checkedAt = r.now()
	r.state.Store(next)
	return next.lookup
}

func (r *Reader) fresh(st *readerState) bool {
	if st.checkedAt.IsZero() {
		return false
	}
	ttl := r.checkInterval
	if st.failed && loadFailureBackoff < ttl {
		ttl = loadFailureBackoff
	}
	return r.now().Sub(st.checkedAt) < ttl
}

func (r *Reader) reload(ctx context.Context, prev *readerState) (*readerState, error) {
	version, err := r.store.GetGeoDatabaseVersion(ctx)
	if errors.Is(err, repository.ErrGeoDatabaseNotFound) {
		return &readerState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read geo database version: %w", err)
	}
	if prev != nil && prev.lookup != nil && prev.version.Equal(version) {
		return &readerState{version: version, lookup: prev.lookup}, nil
	}

	db, err := r.store.GetGeoDatabase(ctx)
	if errors.Is(err, repository.ErrGeoDatabaseNotFound) {
		return &readerState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load geo database: %w", err)
	}

	lookup, err := r.open(db.MMDB)
	if err != nil {
		return nil, fmt.Errorf("failed to open geo database: %w", err)
	}

	metrics.GeoReaderReloadsTotal.Inc()
	r.log.Info("loaded country database",
		zap.Time("fetched_at", db.FetchedAt),
		zap.Int("size_bytes", len(db.MMDB)),
	)
	return &readerState{version: db.FetchedAt, lookup: lookup}, nil
}
