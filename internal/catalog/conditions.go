package catalog

// ConditionProfiles holds the built-in skin condition descriptions used to
// seed the skin_conditions table. Each profile describes the condition, its
// skincare goals, and the product attributes that address it, so the embedded
// text retrieves well against concern-style queries.
var ConditionProfiles = map[string]string{
	"Oily Skin": `Oily skin is characterized by overproduction of sebum by the
sebaceous glands, resulting in a persistently shiny or greasy appearance,
particularly in the T-zone. Enlarged pores clog easily, leading to blackheads,
whiteheads, and acne breakouts. The goal is to manage excess sebum, minimize
shine, and keep pores clear without stripping the skin, which can trigger
rebound oil production. Beneficial products: gel or foaming cleansers with
salicylic acid, chemical exfoliants (BHA/AHA), niacinamide serums to regulate
oil and minimize pore appearance, oil-free non-comedogenic lightweight gel
moisturizers with hyaluronic acid, clay masks, and matte-finish sunscreens.
Avoid heavy occlusive creams, rich oils, and harsh alcohol-based toners.`,

	"Wrinkles": `Wrinkles, from fine lines to deeper furrows, develop as skin
loses collagen, elastin, and moisture with age and sun exposure. The goals are
to stimulate collagen production, improve hydration and plumpness, and protect
against further photoaging. Beneficial products: retinoids (retinol,
retinaldehyde, adapalene) as the gold standard for cell turnover and collagen
synthesis, peptides, antioxidants like vitamin C and ferulic acid, AHAs for
surface renewal, hyaluronic acid to plump fine lines, richer ceramide
moisturizers, and daily broad-spectrum SPF 30+ sunscreen. Avoid
over-exfoliation and starting potent actives at high concentrations.`,

	"Redness": `Redness and irritation signal a compromised or reactive skin
barrier, often aggravated by fragrance, harsh actives, heat, or environmental
stressors. The goals are to calm inflammation, repair the barrier, and avoid
triggers. Beneficial products: gentle fragrance-free cream cleansers, soothing
ingredients such as centella asiatica, panthenol, colloidal oatmeal, green tea,
and azelaic acid, barrier-repair moisturizers with ceramides and niacinamide,
and mineral sunscreens with zinc oxide. Avoid alcohol-heavy formulas, strong
fragrances, physical scrubs, and high-strength acids.`,

	"Eye Bags": `Eye bags and under-eye puffiness result from fluid retention,
thinning skin, and loss of elasticity around the orbital area; dark circles
often accompany them. The goals are to improve microcirculation, firm the
delicate skin, and hydrate without irritation. Beneficial products: caffeine
eye creams to reduce puffiness, peptides and gentle retinol formulations made
for the eye area, vitamin C for brightening dark circles, hyaluronic acid for
hydration, and cooling gel textures. Avoid dragging or rubbing the area and
high-strength actives not formulated for use near the eyes.`,
}
