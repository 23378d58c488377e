package agentmanager

import "strings"

// Well-known worker ids seeded by DefaultWorkers. The router returns one of
// these unless a caller supplies a preferred worker that exists in the pool.
const (
	WorkerSupervisor  = "supervisor"
	WorkerResearch    = "research"
	WorkerWriter      = "writer"
	WorkerVision      = "vision"
	WorkerComputerUse = "computer-use"
	WorkerCode        = "code"
)

// Keyword groups are matched in this fixed priority order: computer-use
// wins over every other group (it is checked first, independent of the
// group loop below), then research, vision, code, writing; anything
// matching none of them falls through to the supervisor.
var (
	computerUseKeywords = []string{
		"screenshot", "click", "type", "scroll", "navigate", "browse",
		"open application", "close window", "desktop", "automate", "gui",
		"interface", "button", "menu", "mouse", "keyboard",
	}
	researchKeywords = []string{
		"search", "research", "find information", "look up", "investigate",
		"gather data", "fact check", "web search", "current events",
	}
	visionKeywords = []string{
		"image", "picture", "screenshot", "visual", "analyze image", "ocr",
		"computer vision", "describe image",
	}
	codeKeywords = []string{
		"code", "program", "script", "function", "debug", "implement",
		"programming", "software", "algorithm", "javascript", "python",
	}
	writingKeywords = []string{
		"write", "create content", "article", "blog", "essay", "documentation",
		"report", "copy", "compose",
	}
)

// Router picks exactly one worker id for a task description. It holds no
// state: the same description and worker set always produce the same
// routing decision.
type Router struct{}

// NewRouter constructs a Router.
func NewRouter() *Router { return &Router{} }

// Exists reports whether id names a worker the router may route to.
type Exists func(id string) bool

// Route chooses a worker id for description. preferred, if non-empty and
// present in the pool (per exists), always wins. Otherwise the keyword
// groups are checked in priority order; no match routes to the supervisor.
func (r *Router) Route(description, preferred string, exists Exists) string {
	if preferred != "" && exists(preferred) {
		return preferred
	}

	desc := strings.ToLower(description)
	switch {
	case containsAny(desc, computerUseKeywords):
		return WorkerComputerUse
	case containsAny(desc, researchKeywords):
		return WorkerResearch
	case containsAny(desc, visionKeywords):
		return WorkerVision
	case containsAny(desc, codeKeywords):
		return WorkerCode
	case containsAny(desc, writingKeywords):
		return WorkerWriter
	default:
		return WorkerSupervisor
	}
}

// RequiresComputerUse reports whether description matches the same
// keyword group the router checks first, independent of which worker
// eventually handles the task (a preferred override may still claim a
// computer-use task).
func RequiresComputerUse(description string) bool {
	return containsAny(strings.ToLower(description), computerUseKeywords)
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
