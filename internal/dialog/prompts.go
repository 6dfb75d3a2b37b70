package dialog

// User-facing prompt text. Kept in one place so the wording stays
// consistent across the entry path and the per-step handlers.
const (
	promptTimeout          = "等待超时，操作取消"
	promptCancelled        = "已取消操作"
	promptTooManyAttempts  = "连续两次输入错误的引擎名，已取消操作"
	promptEngineEmpty      = "请回复有效的引擎名"
	promptImageOnly        = "请发送一张图片或图片链接"
	promptNeedBoth         = "请提供引擎名和图片"
	promptNeedEngine       = "请提供引擎名"
	promptNeedImage        = "请提供图片"
	promptTextConfirm      = "需要文本格式的结果吗？回复\"是\"以获取，10秒内有效"
	promptNoActiveSession  = "当前没有进行中的搜索"
	promptPickWithImage    = "图片已接收，请回复引擎名（如baidu），30秒内有效"
	promptPickNoImage      = "请选择引擎（回复引擎名，如baidu）并发送图片，30秒内有效"
	promptEngineUnknownFmt = "引擎 '%s' 不存在，请回复有效的引擎名"
	promptEngineBadFmt     = "引擎 '%s' 不存在或已停用，请提供有效的引擎名"
	promptDisabledFmt      = "引擎 '%s' 已停用，请选择其他引擎"
	promptChosenWaitImgFmt = "已选择引擎: %s，请在30秒内发送一张图片，我会进行搜索"
	promptChosenSendFmt    = "已选择引擎: %s，请发送图片或图片URL，30秒内有效"
)
