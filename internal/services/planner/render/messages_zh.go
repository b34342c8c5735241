package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	lang := language.SimplifiedChinese

	message.SetString(lang, "plan.title", "计划")
	message.SetString(lang, "plan.empty", "暂无任务。")
	message.SetString(lang, "list.inbox", "收集箱")
	message.SetString(lang, "list.active-now", "正在进行")
	message.SetString(lang, "list.next-action", "下一步行动")
	message.SetString(lang, "list.someday", "将来/也许")
	message.SetString(lang, "list.waiting", "等待中")
	message.SetString(lang, "list.routine", "例行")
	message.SetString(lang, "list.checklist", "清单")
	message.SetString(lang, "annotation.priority", "优先级 %s")
	message.SetString(lang, "annotation.estimate", "约 %d 分钟")
	message.SetString(lang, "annotation.date", "%s")
	message.SetString(lang, "annotation.exact", "%s %s")
	message.SetString(lang, "annotation.window", "%s %s-%s")
	message.SetString(lang, "annotation.reminder", "提醒 %s")
	message.SetString(lang, "annotation.review", "复查 %s")
	message.SetString(lang, "reminder.default", "提醒：%s")
	message.SetString(lang, "reminder.scheduled", "提醒：%s（计划于 %s）")
	message.SetString(lang, "reminder.delayed", "【延迟提醒】%s")
}
