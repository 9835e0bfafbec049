package scenario

// defaultScenario is the built-in SPIN sales training scenario. A deployment
// can override any part of it with a YAML file passed to Load.
const defaultScenario = `
question_types:
  - id: situational
    name: "Ситуационный вопрос"
    weight: 5
  - id: problem
    name: "Проблемный вопрос"
    weight: 10
  - id: implication
    name: "Извлекающий вопрос"
    weight: 15
  - id: need_payoff
    name: "Направляющий вопрос"
    weight: 20

game_rules:
  max_questions: 10
  target_clarity: 80
  min_questions_for_completion: 5
  short_question_threshold: 5
  maestro_score: 221

active_listening:
  enabled: true
  use_llm: true
  bonus_points: 5
  markers:
    - "как вы сказали"
    - "вы сказали"
    - "вы упомянули"
    - "вы говорили"
    - "уточните"
    - "по поводу"
    - "этой проблемы"
    - "этой ситуации"
    - "той ситуации"
    - "того, что вы"
    - "в связи с тем"
    - "касательно"
    - "относительно"
    - "что вы имели в виду"

achievements:
  - id: first_training
    name: "Первые шаги"
    condition: "total_trainings >= 1"
  - id: persistent
    name: "Упорство"
    condition: "total_trainings >= 5"
  - id: full_round
    name: "Марафонец"
    condition: "question_count >= 10"
  - id: good_listener
    name: "Активный слушатель"
    condition: "contextual_questions >= 3"
  - id: high_scorer
    name: "Мастер ясности"
    condition: "best_score >= 221"
  - id: seasoned
    name: "Ветеран"
    condition: "total_xp >= 1500 and total_trainings >= 10"

levels:
  - level: 1
    min_xp: 0
    title: "Новичок"
  - level: 2
    min_xp: 100
    title: "Стажёр"
  - level: 3
    min_xp: 300
    title: "Специалист"
  - level: 4
    min_xp: 700
    title: "Эксперт"
  - level: 5
    min_xp: 1500
    title: "Маэстро продаж"

cases:
  positions:
    - "Руководитель отдела закупок"
    - "Коммерческий директор"
    - "Директор по производству"
    - "Операционный директор"
    - "Главный инженер"
  companies:
    - "производственная компания (металлообработка)"
    - "сеть продуктовых магазинов"
    - "строительный холдинг"
    - "фармацевтический дистрибьютор"
    - "транспортно-логистическая компания"
    - "пищевое производство"
  products:
    - "промышленное оборудование"
    - "упаковочные материалы"
    - "IT-система управления складом"
    - "услуги грузоперевозок"
    - "сырьё для производства"
  situations:
    - "текущий поставщик регулярно срывает сроки"
    - "закупочные цены выросли на 15% за год"
    - "качество последних партий нестабильно"
    - "процесс согласования закупок затянут"
    - "склад переполнен неликвидными остатками"
  volumes:
    - "2-3 млн рублей в месяц"
    - "около 10 млн рублей в квартал"
    - "500-700 тысяч рублей в месяц"
    - "свыше 50 млн рублей в год"
  frequencies:
    - "еженедельно"
    - "2 раза в месяц"
    - "ежемесячно"
    - "поквартально"
  urgencies:
    - "плановая закупка"
    - "срочная потребность"
    - "пилотная партия"

messages:
  start_hint: "Напишите \"начать\" для старта тренировки"
  case_intro: "📋 Новый кейс:\n\n{case}\n\nЗадавайте вопросы клиенту. Для обратной связи напишите \"ДА\", для завершения - \"завершить\"."
  short_question: "Задайте более развернутый вопрос клиенту или напишите \"начать\" для новой тренировки."
  progress: "Вопрос {count}/{max} | Ясность: {clarity}%"
  question_feedback: "🏷 {question_type}\n\n💬 Клиент: {client_response}\n\n{progress_line}"
  feedback_response: "💬 Обратная связь:\n\n{feedback}"
  feedback_in_progress: "Фидбек уже генерируется, подождите пару секунд..."
  feedback_no_question: "Сначала задайте вопрос клиенту."
  feedback_pending: "⏳ Пишу фидбек…"
  listening_badge: " 👂 (Успешное активное слушание)"
  error_generic: "Что-то пошло не так. Попробуйте ещё раз."
  access_denied: "Доступ к тренировкам ограничен. Оформите подписку, чтобы продолжить."
  report_header: "🏁 Тренировка завершена!\n\nИтоговый балл: {score}\nВопросов задано: {questions}\nЯсность: {clarity}%"
  report_type_line: "  • {type}: {count}"
  report_listening: "👂 Активное слушание: {contextual}/{questions} ({percent}%)"
  report_achievement: "🎖 Новое достижение: {name}"
  report_level_up: "🎊 Новый уровень: {old} → {new} ({title})"
  history_header: "📜 Последние тренировки:"
  history_line: "{date} — {score} баллов, вопросов: {questions}, ясность: {clarity}%"
  history_empty: "История пока пуста. Напишите \"начать\", чтобы пройти первую тренировку."

prompts:
  classification: "Ты эксперт по методологии SPIN-продаж. Классифицируй вопрос продавца по типам: {types}. Контекст кейса:\n{case}\n\nОтветь одним словом - идентификатором типа."
  response: "Вы клиент из кейса со следующими параметрами:\n\nРОЛЬ: {position} в компании \"{company}\"\nКОНТЕКСТ: {case}\n\nДОПОЛНИТЕЛЬНАЯ ИНФОРМАЦИЯ:\n- Объём закупок: {volume}\n- Частота: {frequency}\n- Тип ситуации: {situation}\n- Характер закупки: {urgency}\n\nПРИНЦИПЫ ОТВЕТОВ:\n- Отвечайте нейтрально и сдержанно, как реальный занятой руководитель\n- НЕ раскрывайте проблемы сами - только на конкретные SPIN-вопросы\n- На ситуационные вопросы: давайте факты и цифры\n- На проблемные: признавайте проблемы, но не драматизируйте\n- На извлекающие: раскрывайте последствия постепенно, намёками\n- На направляющие: подтверждайте ценность предложенных решений\n\nСТИЛЬ: Короткие реалистичные ответы (2-4 предложения), профессиональный тон.\n\nВопрос продавца: {question}"
  feedback: "Ты наставник по SPIN-продажам. Оцени ход тренировки и дай короткую рекомендацию.\n\nПоследний тип вопроса: {last_question_type}\nЗадано вопросов: {question_count}\nЯсность: {clarity_level}%\nСитуационных: {situational_q}, проблемных: {problem_q}, извлекающих: {implication_q}, направляющих: {need_payoff_q}\n\nДай 2-3 конкретных совета, что спросить дальше."
  context_check: "Определи, использует ли новый вопрос продавца информацию из последнего ответа клиента.\n\nОтвет клиента: {last_response}\n\nНовый вопрос: {question}\n\nОтветь строго одним словом: yes или no."
`
