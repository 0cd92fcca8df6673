package tracker

import "time"

// DefaultMotto is shown until the user writes their own
const DefaultMotto = "One thing done, one step closer to the goal."

// Seed returns the example dataset used when nothing has been persisted yet
// or the persisted snapshot cannot be read.
func Seed(now time.Time) Store {
	now = Normalize(now)

	lab := Project{ID: newID(), Name: "Deep Work Lab", Stage: StagePlanning}
	consulting := Project{ID: newID(), Name: "Shandu Consulting", Stage: StageExecuting}
	airdrop := Project{ID: newID(), Name: "Binance Airdrop", Stage: StageExecuting}
	booster := Project{ID: newID(), Name: "OKX Booster", Stage: StagePlanning}

	product := Project{ID: newID(), ParentID: lab.ID, Name: "Product / Features", Stage: StagePlanning}
	brand := Project{ID: newID(), ParentID: consulting.ID, Name: "Clients & Brand", Stage: StageExecuting}
	campaigns := Project{ID: newID(), ParentID: airdrop.ID, Name: "This Week's Campaigns", Stage: StageExecuting}

	return Store{
		Projects: []Project{lab, consulting, airdrop, booster, product, brand, campaigns},
		Tasks: []Task{
			{ID: newID(), ProjectID: product.ID, Title: "Define MVP modules", Status: StatusInProgress, Tags: []string{"product"}, CreatedAt: now},
			{ID: newID(), ProjectID: product.ID, Title: "Homepage visual draft", Status: StatusTodo, Tags: []string{"design"}, CreatedAt: now},
			{ID: newID(), ProjectID: brand.ID, Title: "Website copy V1", Status: StatusDone, Tags: []string{"brand"}, CreatedAt: now.Add(-24 * time.Hour)},
		},
		Motto: DefaultMotto,
	}
}
