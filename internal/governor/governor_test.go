package governor_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/storepilot/core/config"
	"basegraph.app/storepilot/internal/governor"
	"basegraph.app/storepilot/internal/model"
)

func action(t model.ActionType, payload string) model.Action {
	return model.Action{Type: t, Payload: json.RawMessage(payload)}
}

func repeat(a model.Action, n int) []model.Action {
	out := make([]model.Action, n)
	for i := range out {
		out[i] = a
	}
	return out
}

func reasons(d model.GovernorDecision) []string {
	out := make([]string, 0, len(d.RejectedActions))
	for _, r := range d.RejectedActions {
		out = append(out, r.Reason)
	}
	return out
}

var _ = Describe("Governor", func() {
	var (
		constraints config.Constraints
		snap        model.Snapshot
	)

	BeforeEach(func() {
		constraints = config.DefaultConstraints()
		snap = model.Snapshot{
			SnapshotID: "snap-1",
			ProductMetrics: []model.ProductMetric{
				{ProductID: "100", Title: "Pro Automation Kit", Price: 50, SalesCount: 10, RefundRate: 0.01},
				{ProductID: "200", Title: "Starter Pack", Price: 30, SalesCount: 1},
				{ProductID: "300", Title: "Refund Magnet", Price: 40, SalesCount: 12, RefundRate: 0.2},
			},
		}
	})

	apply := func(actions ...model.Action) model.GovernorDecision {
		return governor.New(constraints).Apply(model.Plan{Actions: actions}, snap)
	}

	Describe("action cap", func() {
		draft := action(model.ActionCreateItems, `{"count":1,"mode":"draft_only","productType":"kit"}`)

		It("approves at most MaxActionsPerCycle of twelve identical actions", func() {
			constraints.MaxNewItemsPerDay = 100

			d := apply(repeat(draft, 12)...)

			Expect(d.ApprovedActions).To(HaveLen(8))
			Expect(d.RejectedActions).To(HaveLen(4))
			Expect(reasons(d)).To(HaveEach(governor.ReasonMaxActions))
		})

		It("still applies quotas inside the cap", func() {
			d := apply(repeat(draft, 12)...)

			Expect(d.ApprovedActions).To(HaveLen(5))
			Expect(reasons(d)).To(HaveLen(7))
			Expect(reasons(d)).To(ContainElement(governor.ReasonMaxNewItems))
			Expect(reasons(d)).To(ContainElement(governor.ReasonMaxActions))
		})

		It("rejects the surplus beyond the over-allocation bound", func() {
			constraints.MaxNewItemsPerDay = 100

			d := apply(repeat(draft, 15)...)

			Expect(d.ApprovedActions).To(HaveLen(8))
			Expect(reasons(d)).To(HaveLen(7))
			Expect(reasons(d)[5:]).To(HaveEach(governor.ReasonOverAllocation))
		})

		It("never leaves a rejection without a reason", func() {
			d := apply(
				action("launch_rocket", `{}`),
				action(model.ActionPauseItem, ``),
				action(model.ActionAdjustPrice, `{"productId":"100","newPrice":"cheap"}`),
			)

			Expect(d.RejectedActions).To(HaveLen(3))
			for _, r := range d.RejectedActions {
				Expect(r.Reason).NotTo(BeEmpty())
			}
		})
	})

	Describe("schema", func() {
		It("assigns a content key to approved actions without one", func() {
			a := action(model.ActionPauseItem, `{"productId":"200"}`)

			d := apply(a)

			Expect(d.ApprovedActions).To(HaveLen(1))
			Expect(d.ApprovedActions[0].IdempotencyKey).To(Equal(a.ContentKey()))
		})

		It("keeps an existing key", func() {
			a := action(model.ActionPauseItem, `{"productId":"200"}`)
			a.IdempotencyKey = "k-1"

			d := apply(a)

			Expect(d.ApprovedActions[0].IdempotencyKey).To(Equal("k-1"))
		})

		It("rejects unsupported types and non-object payloads", func() {
			d := apply(action("launch_rocket", `{}`), action(model.ActionPauseItem, `"200"`))

			Expect(reasons(d)).To(Equal([]string{governor.ReasonUnsupportedType, governor.ReasonMissingPayload}))
		})

		It("records the constraints used", func() {
			Expect(apply().ConstraintsUsed).To(Equal(constraints))
		})
	})

	DescribeTable("payload validation",
		func(t model.ActionType, payload, reason string) {
			d := apply(action(t, payload))
			Expect(d.ApprovedActions).To(BeEmpty())
			Expect(reasons(d)).To(Equal([]string{reason}))
		},
		Entry("zero count", model.ActionCreateItems, `{"count":0}`, "create_items requires a positive count"),
		Entry("bad mode", model.ActionCreateItems, `{"count":1,"mode":"live"}`, "create_items mode must be draft_only or publish"),
		Entry("claims in copy", model.ActionCreateItems, `{"count":1,"description":"Results GUARANTEED"}`, "Prohibited claims found in product copy"),
		Entry("refresh without product", model.ActionRefreshCopy, `{"fields":["title"]}`, "refresh_copy requires productId"),
		Entry("refresh without fields", model.ActionRefreshCopy, `{"productId":"100","fields":[]}`, "refresh_copy requires fields array"),
		Entry("claims in tone", model.ActionRefreshCopy, `{"productId":"100","fields":["title"],"tone":"we promise"}`, "Prohibited claims in tone/copy"),
		Entry("price as string", model.ActionAdjustPrice, `{"productId":"100","newPrice":"45"}`, "adjust_price requires productId and numeric newPrice"),
		Entry("pause without product", model.ActionPauseItem, `{"reason":"slow"}`, "pause_item requires productId"),
		Entry("bundle of one", model.ActionCreateBundle, `{"productIds":["100"],"bundlePrice":60}`, "create_bundle requires at least two productIds"),
		Entry("bundle without price", model.ActionCreateBundle, `{"productIds":["100","200"]}`, "create_bundle requires bundlePrice number"),
		Entry("claims in bundle", model.ActionCreateBundle, `{"productIds":["100","200"],"bundlePrice":60,"bundleTitle":"Lifetime warranty set"}`, "Prohibited claims in bundle title"),
		Entry("marketing ids not array", model.ActionGenerateMarketing, `{"productIds":"100","channels":["seo"]}`, "generate_marketing productIds must be an array"),
		Entry("marketing without channels", model.ActionGenerateMarketing, `{"channels":[]}`, "generate_marketing requires at least one channel"),
		Entry("marketing bad channel", model.ActionGenerateMarketing, `{"channels":["tiktok"]}`, "Unsupported marketing channel tiktok"),
	)

	Describe("quotas", func() {
		It("counts item totals across actions", func() {
			d := apply(
				action(model.ActionCreateItems, `{"count":3}`),
				action(model.ActionCreateItems, `{"count":"3"}`),
				action(model.ActionCreateItems, `{"count":2}`),
			)

			Expect(d.ApprovedActions).To(HaveLen(2))
			Expect(reasons(d)).To(Equal([]string{governor.ReasonMaxNewItems}))
		})

		It("limits published items separately", func() {
			d := apply(
				action(model.ActionCreateItems, `{"count":2,"mode":"publish"}`),
				action(model.ActionCreateItems, `{"count":1,"mode":"publish"}`),
				action(model.ActionCreateItems, `{"count":1,"mode":"draft_only"}`),
			)

			Expect(d.ApprovedActions).To(HaveLen(2))
			Expect(reasons(d)).To(Equal([]string{governor.ReasonMaxPublish}))
		})

		It("does not charge rejected actions against the quota", func() {
			d := apply(
				action(model.ActionCreateItems, `{"count":5,"title":"pro automation kit!!"}`),
				action(model.ActionCreateItems, `{"count":5}`),
			)

			Expect(reasons(d)).To(Equal([]string{governor.ReasonDuplicateTitle}))
			Expect(d.ApprovedActions).To(HaveLen(1))
		})
	})

	Describe("price guardrails", func() {
		It("approves a change within bounds and cap", func() {
			d := apply(action(model.ActionAdjustPrice, `{"productId":"100","newPrice":45}`))
			Expect(d.ApprovedActions).To(HaveLen(1))
		})

		It("rejects prices outside the allowed range", func() {
			d := apply(
				action(model.ActionAdjustPrice, `{"productId":"100","newPrice":10}`),
				action(model.ActionAdjustPrice, `{"productId":"100","newPrice":400}`),
			)
			Expect(reasons(d)).To(HaveEach("Price must be between 19-299"))
		})

		It("rejects changes above the daily cap", func() {
			d := apply(action(model.ActionAdjustPrice, `{"productId":"100","newPrice":40}`))
			Expect(reasons(d)).To(Equal([]string{"Price change 20.00% exceeds daily cap"}))
		})

		It("rejects unknown products", func() {
			d := apply(action(model.ActionAdjustPrice, `{"productId":"999","newPrice":45}`))
			Expect(reasons(d)).To(Equal([]string{"Unknown product for adjust_price"}))
		})

		It("accepts numeric product ids", func() {
			d := apply(action(model.ActionAdjustPrice, `{"productId":100,"newPrice":48}`))
			Expect(d.ApprovedActions).To(HaveLen(1))
		})
	})

	Describe("evidence", func() {
		It("requires enough orders before repricing", func() {
			d := apply(action(model.ActionAdjustPrice, `{"productId":"200","newPrice":29}`))
			Expect(reasons(d)).To(Equal([]string{governor.ReasonInsufficientData}))
		})

		It("requires enough orders for marketing", func() {
			d := apply(action(model.ActionGenerateMarketing, `{"productIds":["200"],"channels":["email"]}`))
			Expect(reasons(d)).To(Equal([]string{"Not enough sample orders for selected products"}))
		})

		It("refuses to market items with high refund rates", func() {
			d := apply(action(model.ActionGenerateMarketing, `{"productIds":["300"],"channels":["email"]}`))
			Expect(reasons(d)).To(Equal([]string{"Refund rate too high for selected products"}))
		})

		It("allows store-wide marketing", func() {
			d := apply(action(model.ActionGenerateMarketing, `{"channels":["seo","reddit"]}`))
			Expect(d.ApprovedActions).To(HaveLen(1))
		})

		It("requires refresh_copy to target a known product", func() {
			d := apply(action(model.ActionRefreshCopy, `{"productId":"404","fields":["title"]}`))
			Expect(reasons(d)).To(Equal([]string{"Unknown product for refresh_copy"}))
		})
	})

	Describe("duplicate titles", func() {
		It("rejects a near-identical title", func() {
			d := apply(action(model.ActionCreateItems, `{"count":1,"title":"pro automation kit!!"}`))
			Expect(reasons(d)).To(Equal([]string{governor.ReasonDuplicateTitle}))
		})

		It("allows an unrelated title", func() {
			d := apply(action(model.ActionCreateItems, `{"count":1,"title":"Unrelated Widget"}`))
			Expect(d.ApprovedActions).To(HaveLen(1))
		})

		It("checks bundle titles", func() {
			d := apply(action(model.ActionCreateBundle, `{"productIds":["100","200"],"bundlePrice":70,"bundleTitle":"Starter pack"}`))
			Expect(reasons(d)).To(Equal([]string{governor.ReasonDuplicateTitle}))
		})
	})
})

var _ = DescribeTable("Similarity",
	func(a, b string, expected float64) {
		Expect(governor.Similarity(a, b)).To(BeNumerically("~", expected, 1e-9))
	},
	Entry("case only", "Pro Automation Kit", "pro automation kit", 1.0),
	Entry("two trailing marks", "Pro Automation Kit", "pro automation kit!!", 0.9),
	Entry("empty", "", "anything", 0.0),
)
