package mcp

// TaskType is a dotted-namespace string identifying a unit of work a worker
// can claim, e.g. "huggingface.text.generation". The set below restores the
// full leaf catalogue from the original implementation's TaskTypes class,
// which the distilled spec only gestured at ("e.g. huggingface.text.generation,
// langchain.agent.execute"). The bridge accepts task types outside this set
// too (spec §4.1): neither the validators nor dispatch call IsValidTaskType.
const (
	TaskHFTextGeneration       = "huggingface.text.generation"
	TaskHFTextClassification   = "huggingface.text.classification"
	TaskHFTextSummarization    = "huggingface.text.summarization"
	TaskHFTextTranslation      = "huggingface.text.translation"
	TaskHFTextQA               = "huggingface.text.question_answering"
	TaskHFVisionClassification = "huggingface.vision.classification"
	TaskHFVisionDetection      = "huggingface.vision.object_detection"
	TaskHFVisionSegmentation   = "huggingface.vision.segmentation"
	TaskHFAudioSTT             = "huggingface.audio.speech_recognition"
	TaskHFAudioTTS             = "huggingface.audio.text_to_speech"
	TaskHFMultimodalVQA        = "huggingface.multimodal.visual_qa"

	TaskLCAgentExecute      = "langchain.agent.execute"
	TaskLCChatExecute       = "langchain.chat.execute"
	TaskLCReactExecute      = "langchain.react.execute"
	TaskLCGenerativeExecute = "langchain.generative.execute"
	TaskLCPlanExecute       = "langchain.plan_execute"
	TaskLCBabyAGIExecute    = "langchain.babyagi.execute"

	TaskDGAudioTranscribeLive = "deepgram.audio.transcribe.live"
	TaskDGAudioTranscribeFile = "deepgram.audio.transcribe.file"
	TaskDGAudioAgentLive      = "deepgram.audio.agent.live"

	TaskSysHealthCheck    = "system.health_check"
	TaskSysTelemetryQuery = "system.telemetry_query"
	TaskSysConfigUpdate   = "system.config_update"
	TaskSysExecuteCode    = "system.execute_code"

	TaskLifeOSCalendarSync   = "lifeos.calendar.sync"
	TaskLifeOSEmailProcess   = "lifeos.email.process"
	TaskLifeOSContactSearch  = "lifeos.contact.search"

	TaskSecAudit           = "security.audit"
	TaskSecVulnScan        = "security.vulnerability_scan"
	TaskSecComplianceCheck = "security.compliance_check"

	TaskMemKGUpsert         = "memory.knowledge_graph.upsert"
	TaskMemKGQuery          = "memory.knowledge_graph.query"
	TaskMemContextRetrieve  = "memory.context.retrieve"
	TaskMemContextStore     = "memory.context.store"

	TaskResearchWebSearch       = "research.web.search"
	TaskResearchWebScrape       = "research.web.scrape"
	TaskWriterCompose           = "writer.compose"
	TaskCodewriterGenerate      = "codewriter.generate"
	TaskAnalyticsRunQuery       = "analytics.run_query"
	TaskSchedulerScheduleEvent  = "scheduler.schedule_event"
	TaskMultimodalFuse          = "multimodal.fuse"
	TaskTranslationDetectTranslate = "translation.detect_translate"
	TaskNotificationSend        = "notification.send"
	TaskArtistGenerateImage     = "artist.generate_image"
	TaskDesignCreateMockup      = "design.create_mockup"
	TaskComedianGenerateJoke    = "comedian.generate_joke"
)

// knownTaskTypes backs IsValidTaskType; it is the full leaf set above.
var knownTaskTypes = map[string]bool{
	TaskHFTextGeneration: true, TaskHFTextClassification: true, TaskHFTextSummarization: true,
	TaskHFTextTranslation: true, TaskHFTextQA: true, TaskHFVisionClassification: true,
	TaskHFVisionDetection: true, TaskHFVisionSegmentation: true, TaskHFAudioSTT: true,
	TaskHFAudioTTS: true, TaskHFMultimodalVQA: true,
	TaskLCAgentExecute: true, TaskLCChatExecute: true, TaskLCReactExecute: true,
	TaskLCGenerativeExecute: true, TaskLCPlanExecute: true, TaskLCBabyAGIExecute: true,
	TaskDGAudioTranscribeLive: true, TaskDGAudioTranscribeFile: true, TaskDGAudioAgentLive: true,
	TaskSysHealthCheck: true, TaskSysTelemetryQuery: true, TaskSysConfigUpdate: true, TaskSysExecuteCode: true,
	TaskLifeOSCalendarSync: true, TaskLifeOSEmailProcess: true, TaskLifeOSContactSearch: true,
	TaskSecAudit: true, TaskSecVulnScan: true, TaskSecComplianceCheck: true,
	TaskMemKGUpsert: true, TaskMemKGQuery: true, TaskMemContextRetrieve: true, TaskMemContextStore: true,
	TaskResearchWebSearch: true, TaskResearchWebScrape: true, TaskWriterCompose: true,
	TaskCodewriterGenerate: true, TaskAnalyticsRunQuery: true, TaskSchedulerScheduleEvent: true,
	TaskMultimodalFuse: true, TaskTranslationDetectTranslate: true, TaskNotificationSend: true,
	TaskArtistGenerateImage: true, TaskDesignCreateMockup: true, TaskComedianGenerateJoke: true,
}

// IsValidTaskType matches a task type against the enumerated leaf set.
func IsValidTaskType(taskType string) bool {
	return knownTaskTypes[taskType]
}

// Supervisor names the fixed three-supervisor capability families
// (spec §4.1: "a fixed map of three supervisors").
type Supervisor string

const (
	SupervisorIntelligence Supervisor = "intelligence"
	SupervisorMultimodal   Supervisor = "multimodal"
	SupervisorSystem       Supervisor = "system"
)

// AgentCapabilities maps each supervisor to the task types it claims,
// restored from original_source's AGENT_CAPABILITIES dict.
var AgentCapabilities = map[Supervisor][]string{
	SupervisorIntelligence: {
		TaskLCAgentExecute, TaskLCChatExecute, TaskLCReactExecute,
		TaskHFTextGeneration, TaskHFTextClassification,
		TaskResearchWebSearch, TaskWriterCompose, TaskCodewriterGenerate,
		TaskAnalyticsRunQuery,
	},
	SupervisorMultimodal: {
		TaskHFVisionClassification, TaskHFAudioSTT,
		TaskDGAudioTranscribeLive, TaskDGAudioAgentLive,
		TaskMultimodalFuse, TaskArtistGenerateImage,
	},
	SupervisorSystem: {
		TaskSysHealthCheck, TaskSysTelemetryQuery,
		TaskLifeOSCalendarSync, TaskSecAudit, TaskMemKGQuery,
		TaskNotificationSend,
	},
}

// SupervisorForTask returns the supervisor responsible for task type, or
// SupervisorIntelligence when no supervisor claims it (spec §4.1 default).
func SupervisorForTask(taskType string) Supervisor {
	for supervisor, types := range AgentCapabilities {
		for _, t := range types {
			if t == taskType {
				return supervisor
			}
		}
	}
	return SupervisorIntelligence
}
