package pricing

// usStateTaxBps is the partial home-market sales tax table in basis points.
// States absent from the table are taxed at 0%.
var usStateTaxBps = map[string]int{
	"AZ": 560,
	"CA": 725,
	"CO": 290,
	"FL": 600,
	"HI": 400,
	"IL": 625,
	"NV": 685,
	"NY": 800,
	"OR": 0,
	"TX": 625,
	"UT": 485,
	"WA": 650,
}
