package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	service "github.com/tenring/quiver/internal/app"
	"github.com/tenring/quiver/internal/domain/model"
	"github.com/tenring/quiver/internal/domain/scorekeeper"
	"github.com/tenring/quiver/internal/domain/target"
)

// Round formats the generator picks from.
var formats = []struct {
	distance     int
	label        string
	arrowsPerEnd int
	totalEnds    int
}{
	{18, "18m", 3, 10},
	{30, "30m", 6, 6},
	{50, "50m", 6, 6},
	{70, "70m", 6, 12},
}

var firstNames = []string{
	"Ana", "Ben", "Chae", "Dana", "Eli", "Fatima", "Goran", "Hana",
	"Ingrid", "Jun", "Kara", "Luca", "Mina", "Noah", "Oren", "Priya",
	"Quinn", "Rosa", "Sejin", "Tomas",
}

var lastNames = []string{
	"Archer", "Bowman", "Castillo", "Dietrich", "Egan", "Fletcher",
	"Garcia", "Hong", "Ivanov", "Jansen", "Kim", "Lindgren", "Moreau",
	"Novak", "Okafor", "Park", "Quist", "Rossi", "Sato", "Tanaka",
}

// generator produces deterministic demo data from a seed.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed int64) *generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &generator{rng: rand.New(rand.NewSource(seed))}
}

// archer builds the i-th demo archer. Skill is encoded in the
// personal-bests map so playRound can bias scores per archer.
func (g *generator) archer(i int) model.User {
	gender := "male"
	if g.rng.Intn(2) == 0 {
		gender = "female"
	}
	return model.User{
		ID:     fmt.Sprintf("archer-%03d", i),
		Name:   firstNames[i%len(firstNames)] + " " + lastNames[(i/len(firstNames))%len(lastNames)],
		Gender: gender,
	}
}

// playRound runs one full round through the service: start, shoot
// every arrow, then mostly complete it. A small share stays
// in progress or gets cancelled so the dataset covers all states.
func (g *generator) playRound(ctx context.Context, svc *service.Service, archer model.User, seq int) error {
	format := formats[g.rng.Intn(len(formats))]
	roundType := g.roundType()

	// Spread dates over the trailing four months so the Masters window
	// and the volume periods both have edges in the data.
	daysAgo := g.rng.Intn(120)
	date := time.Now().UTC().AddDate(0, 0, -daysAgo).Add(-time.Duration(g.rng.Intn(12)) * time.Hour)

	params := scorekeeper.StartRoundParams{
		UserID:        archer.ID,
		Date:          date,
		Distance:      format.distance,
		DistanceLabel: format.label,
		ArrowsPerEnd:  format.arrowsPerEnd,
		TotalEnds:     format.totalEnds,
		Type:          roundType,
	}
	if roundType == model.RoundCompetition {
		params.Competition = &model.CompetitionInfo{
			Name:     fmt.Sprintf("Open %d", seq+1),
			Location: "Range A",
		}
	}

	round, err := svc.StartRound(ctx, params)
	if err != nil {
		return err
	}

	// Per-archer skill between 0 and 1, stable across rounds.
	skill := float64(hashID(archer.ID)%100) / 100

	for end := 1; end <= format.totalEnds; end++ {
		for arrow := 1; arrow <= format.arrowsPerEnd; arrow++ {
			pos := g.shotPosition(skill)
			if _, err := svc.RecordShot(ctx, round.ID, scorekeeper.ShotEntry{
				EndIndex:   end,
				ArrowIndex: arrow,
				Position:   &pos,
			}); err != nil {
				return err
			}
		}
	}

	switch g.rng.Intn(20) {
	case 0:
		_, err = svc.CancelRound(ctx, round.ID)
	case 1:
		// Leave in progress.
	default:
		_, err = svc.CompleteRound(ctx, round.ID)
	}
	return err
}

// roundType picks personal most often, competition least often.
func (g *generator) roundType() model.RoundType {
	switch g.rng.Intn(10) {
	case 0, 1:
		return model.RoundCompetition
	case 2, 3, 4:
		return model.RoundClub
	default:
		return model.RoundPersonal
	}
}

// shotPosition samples a hit around the target center. Higher skill
// tightens the group.
func (g *generator) shotPosition(skill float64) target.HitPosition {
	spread := 28 - 22*skill
	return target.HitPosition{
		X: 50 + g.rng.NormFloat64()*spread,
		Y: 50 + g.rng.NormFloat64()*spread,
	}
}

// hashID gives a stable small number per archer id.
func hashID(id string) int {
	h := 0
	for _, c := range id {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
