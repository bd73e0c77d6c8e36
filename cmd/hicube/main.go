// Command hicube synthesizes a mock spectral-line observation of a model
// galaxy disc: it builds a particle disc, orients it, projects it onto the
// sky, deposits the particles into a datacube and writes quick-look
// previews. Each run can be recorded in a local run database.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/redshift-labs/hicube/internal/config"
	"github.com/redshift-labs/hicube/internal/cube"
	"github.com/redshift-labs/hicube/internal/geometry"
	"github.com/redshift-labs/hicube/internal/monitoring"
	"github.com/redshift-labs/hicube/internal/preview"
	"github.com/redshift-labs/hicube/internal/runlog"
	"github.com/redshift-labs/hicube/internal/source"
	"github.com/redshift-labs/hicube/internal/units"
)

func main() {
	configPath := flag.String("config", "", "Path to observation config JSON (optional)")
	outDir := flag.String("out", "out", "Output directory for previews and saved state")
	nParticles := flag.Int("particles", 4000, "Number of disc particles to generate")
	seed := flag.Int64("seed", 1, "Random seed for the disc generator")
	dbPath := flag.String("db", "", "Run database path; empty disables run recording")
	verbose := flag.Bool("v", false, "Enable per-particle debug diagnostics")
	flag.Parse()

	monitoring.SetDebug(*verbose)

	cfg := &config.ObservationConfig{}
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	if err := run(cfg, *outDir, *nParticles, *seed, *dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.ObservationConfig, outDir string, nParticles int, seed int64, dbPath string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	s, err := buildSource(cfg, nParticles, seed)
	if err != nil {
		return fmt.Errorf("build source: %w", err)
	}

	if err := orient(s, cfg); err != nil {
		return fmt.Errorf("orient source: %w", err)
	}
	rotPath := filepath.Join(outDir, "rotation.txt")
	if err := s.SaveCurrentRotation(rotPath); err != nil {
		return fmt.Errorf("save rotation: %w", err)
	}

	if err := s.ProjectToSky(); err != nil {
		return fmt.Errorf("project to sky: %w", err)
	}
	monitoring.Logf("%s", s)

	c := cube.New(cube.Params{
		NPxX:         cfg.GetNPxX(),
		NPxY:         cfg.GetNPxY(),
		NChannels:    cfg.GetNChannels(),
		PxSize:       units.New(cfg.GetPxSizeArcsec(), units.Arcsec),
		ChannelWidth: units.New(cfg.GetChannelKms(), units.KmPerSecond),
		SpectralCentre: units.New(
			cfg.GetCentreKms()+s.VSys().In(units.KmPerSecond), units.KmPerSecond),
		RA:  units.New(cfg.GetRADeg(), units.Degree),
		Dec: units.New(cfg.GetDecDeg(), units.Degree),
	})

	c.AddPad(cfg.GetPadX(), cfg.GetPadY())
	placed, err := deposit(s, c)
	if err != nil {
		return fmt.Errorf("deposit particles: %w", err)
	}
	c.DropPad()
	monitoring.Logf("deposited %d of %d particles", placed, s.N())

	if cfg.GetFreqMode() {
		c.FreqChannels()
	}

	if err := preview.SourceFigures(s, filepath.Join(outDir, "figures")); err != nil {
		return fmt.Errorf("source figures: %w", err)
	}
	htmlFile, err := os.Create(filepath.Join(outDir, "moment0.html"))
	if err != nil {
		return fmt.Errorf("create moment map: %w", err)
	}
	defer htmlFile.Close()
	if err := preview.MomentMapHTML(c, htmlFile); err != nil {
		return fmt.Errorf("render moment map: %w", err)
	}

	if dbPath != "" {
		if err := recordRun(dbPath, cfg, s, c, rotPath); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
	}
	return nil
}

// buildSource generates a model disc: exponential surface density, a thin
// gaussian vertical profile and a flat outer rotation curve.
func buildSource(cfg *config.ObservationConfig, n int, seed int64) (*source.Source, error) {
	rng := rand.New(rand.NewSource(seed))

	const (
		scaleLength = 3.0   // kpc
		scaleHeight = 0.3   // kpc
		vFlat       = 200.0 // km/s
		turnOver    = 1.5   // kpc
	)

	xyz := make([][]float64, n)
	vxyz := make([][]float64, n)
	masses := make([]float64, n)
	for i := 0; i < n; i++ {
		r := rng.ExpFloat64() * scaleLength
		phi := 2 * math.Pi * rng.Float64()
		x := r * math.Cos(phi)
		y := r * math.Sin(phi)
		z := rng.NormFloat64() * scaleHeight

		vc := vFlat * (1 - math.Exp(-r/turnOver))
		xyz[i] = []float64{x, y, z}
		vxyz[i] = []float64{-vc * math.Sin(phi), vc * math.Cos(phi), 0}
		masses[i] = 1
	}

	return source.New(source.Params{
		XYZ:       xyz,
		VXYZ:      vxyz,
		Mass:      source.ArrayField("m", masses, units.Msun),
		RA:        units.New(cfg.GetRADeg(), units.Degree),
		Dec:       units.New(cfg.GetDecDeg(), units.Degree),
		Distance:  units.New(cfg.GetDistanceMpc(), units.Mpc),
		VPeculiar: units.New(cfg.GetVPeculiar(), units.KmPerSecond),
		H:         cfg.GetHubble(),
	})
}

// orient applies either a saved rotation matrix or the angular-momentum
// alignment configured by the inclination, azimuth and position angle.
func orient(s *source.Source, cfg *config.ObservationConfig) error {
	if path := cfg.GetRotationFile(); path != "" {
		m, err := geometry.LoadMatrix(path)
		if err != nil {
			return err
		}
		return s.Rotate(source.RotationSpec{Matrix: m})
	}
	return s.Rotate(source.RotationSpec{AlignL: &source.AlignLSpec{
		Incl:    units.New(cfg.GetInclDeg(), units.Degree),
		Azimuth: units.New(cfg.GetAzimuthDeg(), units.Degree),
		PA:      units.New(cfg.GetPADeg(), units.Degree),
	}})
}

// deposit places each particle's mass into the nearest cube cell. Particles
// falling outside the (padded) grid are dropped. Returns the placed count.
func deposit(s *source.Source, c *cube.DataCube) (int, error) {
	px, err := s.PixelCoordinates(c)
	if err != nil {
		return 0, err
	}
	mass := s.MassField()

	placed := 0
	for i, p := range px {
		x := int(math.Round(p[0]))
		y := int(math.Round(p[1]))
		ch := int(math.Round(p[2]))
		if x < 0 || x >= c.SizeX() || y < 0 || y >= c.SizeY() || ch < 0 || ch >= c.NChannels {
			monitoring.Debugf("particle %d off grid at (%.1f, %.1f, %.1f)", i, p[0], p[1], p[2])
			continue
		}
		c.Add(x, y, ch, mass.At(i))
		placed++
	}
	return placed, nil
}

func recordRun(dbPath string, cfg *config.ObservationConfig, s *source.Source, c *cube.DataCube, rotPath string) error {
	db, err := runlog.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	rec := runlog.NewRecord()
	rec.NPxX = c.NPxX
	rec.NPxY = c.NPxY
	rec.NChannels = c.NChannels
	rec.PxSizeArcsec = cfg.GetPxSizeArcsec()
	rec.ChannelKms = cfg.GetChannelKms()
	rec.FreqMode = c.FreqMode()
	rec.RADeg = cfg.GetRADeg()
	rec.DecDeg = cfg.GetDecDeg()
	rec.DistanceMpc = cfg.GetDistanceMpc()
	rec.VPeculiarKms = cfg.GetVPeculiar()
	rec.NParticles = s.N()

	params, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	rec.ParamsJSON = string(params)

	rot, err := os.ReadFile(rotPath)
	if err != nil {
		return fmt.Errorf("read rotation: %w", err)
	}
	rec.RotationText = string(rot)

	return db.InsertRun(rec)
}
